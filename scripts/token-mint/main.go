// Command token-mint signs a user token the server will accept, for local
// testing without going through signinUser.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"model-graphql/internal/auth"
)

func main() {
	token, err := mint(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Println(token)
}

func mint(args []string, getenv func(string) string, stderr io.Writer) (string, error) {
	fs := flag.NewFlagSet("token-mint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	secretFile := fs.String("secret-file", "", "File holding the token secret (defaults to $MGQL_AUTH_TOKEN_SECRET)")
	issuer := fs.String("issuer", "", "Token issuer; must match auth.issuer")
	audience := fs.String("audience", "", "Token audience; must match auth.audience")
	subject := fs.String("subject", "", "Internal user id to sign for")
	expires := fs.Duration("expires", time.Hour, "Token lifetime (e.g. 1h)")
	if err := fs.Parse(args); err != nil {
		return "", err
	}

	if strings.TrimSpace(*subject) == "" {
		return "", fmt.Errorf("--subject is required")
	}

	secret := getenv("MGQL_AUTH_TOKEN_SECRET")
	if *secretFile != "" {
		data, err := os.ReadFile(*secretFile)
		if err != nil {
			return "", fmt.Errorf("failed to read secret file: %w", err)
		}
		secret = strings.TrimSpace(string(data))
	}
	if secret == "" {
		return "", fmt.Errorf("no token secret: set MGQL_AUTH_TOKEN_SECRET or --secret-file")
	}

	issuerCfg, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   []byte(secret),
		Issuer:   *issuer,
		Audience: *audience,
		TTL:      *expires,
	})
	if err != nil {
		return "", err
	}
	return issuerCfg.Issue(strings.TrimSpace(*subject))
}
