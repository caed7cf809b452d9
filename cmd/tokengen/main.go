// Command tokengen issues bearer tokens for the API, signed with the same
// JWT_SECRET the server loads. Account ownership follows the user id.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/unified-pay/internal/auth"
)

func main() {
	userFlag := flag.String("user", "", "user id (random when empty)")
	roleFlag := flag.String("role", string(auth.RoleUser), "role: user or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	token, userID, err := issue(os.Getenv("JWT_SECRET"), *userFlag, *roleFlag, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, "user_id:", userID)
	fmt.Println(token)
}

func issue(secret, user, role string, ttl time.Duration) (string, uuid.UUID, error) {
	if secret == "" {
		return "", uuid.Nil, fmt.Errorf("JWT_SECRET must be set")
	}

	r := auth.Role(role)
	if r != auth.RoleUser && r != auth.RoleAdmin {
		return "", uuid.Nil, fmt.Errorf("unknown role %q", role)
	}

	userID := uuid.New()
	if user != "" {
		parsed, err := uuid.Parse(user)
		if err != nil {
			return "", uuid.Nil, fmt.Errorf("invalid user id: %w", err)
		}
		userID = parsed
	}

	token, err := auth.GenerateToken(userID, r, secret, ttl)
	if err != nil {
		return "", uuid.Nil, err
	}
	return token, userID, nil
}
