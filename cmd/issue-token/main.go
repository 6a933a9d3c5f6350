// Command issue-token mints an organizer token for the admin API. With -create-org it first
// creates the organization, optionally with a connected payout account for card fees.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"eventregistration/config"
	"eventregistration/internal/adapters/auth"
	"eventregistration/internal/database"
	"eventregistration/internal/domain"
	"eventregistration/internal/repository/postgres"
)

func main() {
	subject := flag.String("subject", "", "organizer identifier stored in the token subject")
	orgID := flag.String("org", "", "existing organization id")
	createOrg := flag.String("create-org", "", "create an organization with this name and use it")
	payout := flag.String("payout-account", "", "payout account id for the created organization")
	roles := flag.String("roles", "admin", "comma-separated roles")
	expiry := flag.Duration("expiry", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*subject, *orgID, *createOrg, *payout, *roles, *expiry); err != nil {
		fmt.Fprintln(os.Stderr, "issue-token:", err)
		os.Exit(1)
	}
}

func run(subject, orgID, createOrg, payout, roles string, expiry time.Duration) error {
	if subject == "" {
		return fmt.Errorf("-subject is required")
	}
	if (orgID == "") == (createOrg == "") {
		return fmt.Errorf("exactly one of -org or -create-org is required")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if createOrg != "" {
		db, err := database.Open(cfg.DBUrl)
		if err != nil {
			return err
		}
		defer db.Close()
		org := &domain.Organization{Name: createOrg}
		if payout != "" {
			org.PayoutAccountID = &payout
		}
		if err := postgres.NewOrganizationRepository(db).Create(context.Background(), org); err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		fmt.Fprintf(os.Stderr, "created organization %s\n", org.ID)
		orgID = org.ID
	}

	token, err := auth.NewJWTIssuer(cfg.JWTSecret).Issue(subject, orgID, splitRoles(roles), expiry)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func splitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
