// devtoken mints a bearer token for local testing.  In production tokens
// are issued by the identity service; this tool signs with the same
// JWT_SECRET so the API can be exercised without it.
//
//	devtoken --user 42 --role CUSTOMER --ttl 2h
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/concert-seat-reservation/internal/utils"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		userID uint64
		role   string
		ttl    time.Duration
		secret string
	)
	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	flagSet.Uint64VarP(&userID, "user", "u", 0, "purchaser or owner ID carried in the sub claim")
	flagSet.StringVarP(&role, "role", "r", utils.RoleCustomer, "CUSTOMER or OWNER")
	flagSet.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	flagSet.StringVar(&secret, "secret", "", "signing secret (default: JWT_SECRET from the environment)")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if userID == 0 {
		return fmt.Errorf("--user is required")
	}
	role = strings.ToUpper(role)
	if role != utils.RoleCustomer && role != utils.RoleOwner {
		return fmt.Errorf("unknown role %q", role)
	}
	if secret == "" {
		_ = godotenv.Load()
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		return fmt.Errorf("no signing secret: set JWT_SECRET or pass --secret")
	}

	tok, err := utils.NewAccessToken(secret, userID, role, ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
	return nil
}
