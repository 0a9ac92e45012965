// cmd/tools/override-manager/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"eligibility-service/internal/common/config"
	"eligibility-service/internal/common/database"
)

// overrideStore is the slice of database.RedisClient the commands use.
type overrideStore interface {
	AddMembers(ctx context.Context, key string, members ...string) error
	RemoveMembers(ctx context.Context, key string, members ...string) (int64, error)
	Members(ctx context.Context, key string) ([]string, error)
	IsMember(ctx context.Context, key, member string) (bool, error)
}

func main() {
	if len(os.Args) < 2 {
		help(os.Stdout)
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		help(os.Stdout)
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cards := fs.String("card", "", "Comma separated card numbers (e.g., 086955681,123456789)")
	address := fs.String("addr", "", "Redis address, defaults to redis.address from config")
	key := fs.String("key", "", "Redis set key, defaults to redis.overrides_key from config")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(config.WithoutPlanCredentials())
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	redisCfg := cfg.Redis
	if *address != "" {
		redisCfg.Address = *address
	}
	if *key != "" {
		redisCfg.OverridesKey = *key
	}

	client, err := database.NewRedis(redisCfg)
	if err != nil {
		fmt.Printf("Error creating redis client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		fmt.Printf("Error connecting to redis: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, os.Stdout, client, redisCfg.OverridesKey, cmd, splitCards(*cards), cfg.Checker.AlwaysEligible); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, store overrideStore, key, cmd string, cards, static []string) error {
	switch cmd {
	case "add":
		if len(cards) == 0 {
			return fmt.Errorf("-card is required for add")
		}
		if err := store.AddMembers(ctx, key, cards...); err != nil {
			return fmt.Errorf("failed to add cards: %w", err)
		}
		fmt.Fprintf(out, "Added %d card(s) to %s\n", len(cards), key)

	case "remove":
		if len(cards) == 0 {
			return fmt.Errorf("-card is required for remove")
		}
		removed, err := store.RemoveMembers(ctx, key, cards...)
		if err != nil {
			return fmt.Errorf("failed to remove cards: %w", err)
		}
		fmt.Fprintf(out, "Removed %d card(s) from %s\n", removed, key)

	case "list":
		members, err := store.Members(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to list cards: %w", err)
		}
		sort.Strings(members)
		fmt.Fprintf(out, "%s (%d card(s))\n", key, len(members))
		for _, m := range members {
			fmt.Fprintln(out, "  "+m)
		}

	case "check":
		if len(cards) != 1 {
			return fmt.Errorf("check takes exactly one -card")
		}
		ok, err := store.IsMember(ctx, key, cards[0])
		if err != nil {
			return fmt.Errorf("failed to check card: %w", err)
		}
		inStatic := contains(static, cards[0])
		fmt.Fprintf(out, "%s: redis=%t static=%t always_eligible=%t\n", cards[0], ok, inStatic, ok || inStatic)

	case "seed":
		if len(static) == 0 {
			return fmt.Errorf("checker.always_eligible is empty, nothing to seed")
		}
		if err := store.AddMembers(ctx, key, static...); err != nil {
			return fmt.Errorf("failed to seed cards: %w", err)
		}
		fmt.Fprintf(out, "Seeded %d card(s) from checker.always_eligible into %s\n", len(static), key)

	default:
		help(out)
		return fmt.Errorf("unknown command: %s", cmd)
	}
	return nil
}

func splitCards(raw string) []string {
	var cards []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cards = append(cards, c)
		}
	}
	return cards
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func help(out io.Writer) {
	fmt.Fprintln(out, `
Usage: override-manager <command> [flags]

Manages the Redis set of card numbers that are always reported eligible.

Commands:
  add     Add cards to the override set
  remove  Remove cards from the override set
  list    List the override set
  check   Show whether a card is always eligible
  seed    Copy checker.always_eligible from config into Redis
  help    Show this help message

Examples:
  override-manager add -card 086955681,123456789
  override-manager remove -card 123456789
  override-manager check -card 086955681
  override-manager list -addr localhost:6379 -key eligibility:always_eligible

Use 'override-manager <command> -h' for more information about a command.`)
}
