// seed-admin writes an HR admin session into redis for local development and prints its token.
// Production sessions come from the platform's login service under the same "Token:<token>" key.
//
// Usage (from backend directory):
//   REDIS_ADDRESS=localhost:6379 go run ./cmd/seed-admin -username hrAdmin -user-id 1
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/middlewares"
)

func main() {
	username := flag.String("username", "hrAdmin", "Session username")
	userId := flag.Int("user-id", 1, "Session user id (recorded as corrector/approver)")
	admin := flag.Bool("admin", true, "Grant HR admin routes")
	ttl := flag.Duration("ttl", 24*time.Hour, "Session lifetime")
	flag.Parse()

	config.ConnectRedisWithRetry()
	if config.GetRedisDB() == nil {
		fmt.Fprintln(os.Stderr, "redis not initialized. Set REDIS_ADDRESS.")
		os.Exit(1)
	}

	token := uuid.NewString()
	session := middlewares.Session{
		UserId:   *userId,
		Username: *username,
		IsAdmin:  *admin,
	}
	if err := config.SetRedisObject("Token:"+token, &session, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "failed to store session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("token=%s username=%s admin=%t expires_in=%s\n", token, *username, *admin, ttl.String())
}
