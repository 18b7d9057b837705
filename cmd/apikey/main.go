// Command apikey issues an API key for a user or machine identity and prints
// the raw key once.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/kiranshivaraju/jobstore/internal/config"
	"github.com/kiranshivaraju/jobstore/internal/store"
	"github.com/kiranshivaraju/jobstore/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	keyScheme    = "js_"
	keyBytes     = 24
	keyPrefixLen = 8
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	var (
		name    = flag.String("name", "", "human readable key name")
		userID  = flag.String("user", "", "external user id the key authenticates as")
		roles   = flag.String("roles", "", "comma-separated roles")
		machine = flag.Bool("machine", false, "issue a machine key")
	)
	flag.Parse()

	raw, err := run(*name, *userID, *roles, *machine)
	if err != nil {
		slog.Error("issue api key failed", "error", err)
		os.Exit(1)
	}
	fmt.Println(raw)
}

func run(name, userID, roles string, machine bool) (string, error) {
	key, raw, err := newAPIKey(name, userID, splitRoles(roles), machine)
	if err != nil {
		return "", err
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := store.Connect(ctx, config.DatabaseConfig{URL: dbURL, MaxOpenConns: 2, MaxIdleConns: 0, ConnMaxLifetime: time.Minute})
	if err != nil {
		return "", fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := store.NewPostgresStore(pool).CreateAPIKey(ctx, key); err != nil {
		return "", fmt.Errorf("create api key: %w", err)
	}
	slog.Info("api key issued", "key_id", key.ID, "key_prefix", key.KeyPrefix, "user_id", key.UserID, "machine", key.IsMachine)
	return raw, nil
}

// newAPIKey generates a random key and the record that stores its hash.
func newAPIKey(name, userID string, roles []string, machine bool) (*models.APIKey, string, error) {
	if name == "" {
		return nil, "", fmt.Errorf("name is required")
	}
	if userID == "" && !machine {
		return nil, "", fmt.Errorf("user is required for non-machine keys")
	}

	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", fmt.Errorf("generate key: %w", err)
	}
	raw := keyScheme + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash key: %w", err)
	}

	if machine && userID == "" {
		userID = models.MachineAuditUserID
	}
	now := time.Now().UTC()
	return &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:keyPrefixLen],
		UserID:    userID,
		Roles:     roles,
		IsMachine: machine,
		CreatedAt: now,
		UpdatedAt: now,
	}, raw, nil
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
