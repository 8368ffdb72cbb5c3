package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/matching"
	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/utils"
)

func main() {
	ownerID := flag.String("owner-id", "", "Required: owner id (uuid)")
	name := flag.String("name", "", "Required: client name as spoken")
	minScore := flag.Float64("min", config.ClientMinSimilarity(), "Minimum similarity to list")
	limit := flag.Int("limit", config.ClientSuggestionLimit(), "Maximum suggestions")
	useCache := flag.Bool("cache", false, "Read the client directory through redis")
	flag.Parse()

	if strings.TrimSpace(*ownerID) == "" || strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "--owner-id and --name are required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if *useCache {
		config.ConnectRedisWithRetry()
	}
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := utils.SetOwnerIdInContext(context.Background(), *ownerID)
	clients, err := models.NewGormStore(db).ListClients(ctx, *ownerID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list clients failed: %v\n", err)
		os.Exit(1)
	}

	matcher := matching.ClientMatcher{MinSimilarity: *minScore, Limit: *limit}
	directory := models.ClientDirectory(clients)
	suggestions := matcher.FindSimilarClients(*name, directory)
	if len(suggestions) == 0 {
		fmt.Printf("no client of %d resembles %q\n", len(clients), *name)
		return
	}
	for _, s := range suggestions {
		fmt.Printf("id=%d similarity=%.3f name=%s\n", s.ClientId, s.Similarity, s.Name)
	}

	lookup := matcher.LookupClient(*name, directory)
	switch {
	case !lookup.Found:
		fmt.Println("lookup: no candidate, a new client would be created")
	case lookup.NeedsConfirmation:
		fmt.Printf("lookup: %s needs confirmation\n", lookup.Candidate.Name)
	default:
		fmt.Printf("lookup: %s\n", lookup.Candidate.Name)
	}
}
