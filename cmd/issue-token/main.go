// Command issue-token prints an access token for local use and operator scripts.
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"TalentPipe-backend/internal/auth"
	"TalentPipe-backend/internal/config"
)

func main() {
	subject := flag.String("subject", "", "user id (generated when empty)")
	company := flag.String("company", "", "company id, required for recruiters")
	role := flag.String("role", auth.RoleRecruiter, "recruiter or candidate")
	flag.Parse()

	cfg, err := config.Load(".env")
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.Logger()
	if cfg.SecretKey == "" {
		log.Fatal("SECRET_KEY must be set")
	}

	if !slices.Contains([]string{auth.RoleRecruiter, auth.RoleCandidate}, *role) {
		log.Fatalf("unknown role %q", *role)
	}

	subjectID := uuid.New()
	if *subject != "" {
		if subjectID, err = uuid.Parse(*subject); err != nil {
			log.WithError(err).Fatal("invalid -subject")
		}
	}

	companyID := uuid.Nil
	if *company != "" {
		if companyID, err = uuid.Parse(*company); err != nil {
			log.WithError(err).Fatal("invalid -company")
		}
	}
	if *role == auth.RoleRecruiter && companyID == uuid.Nil {
		log.Fatal("-company is required for recruiter tokens")
	}

	token, err := auth.NewSigner(cfg.SecretKey, cfg.TokenTTL).Issue(subjectID, companyID, *role)
	if err != nil {
		log.WithError(err).Fatal("failed to issue token")
	}

	fmt.Fprintf(os.Stderr, "Token issued for %s (%s), valid for %s\n", subjectID, *role, cfg.TokenTTL)
	fmt.Println(token)
}
