package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"itvhub/pkg/account"
	"itvhub/pkg/config"
	"itvhub/pkg/fetch"
	"itvhub/pkg/logger"
	"itvhub/pkg/paths"
	"itvhub/pkg/persistence"
	"itvhub/pkg/schedule"
	"itvhub/pkg/search"
	"itvhub/pkg/stream"
)

func main() {
	// Load environment variables for logger and bootstrap
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}
	logger.Init(logLevel)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// Re-init in case the config file carries a different level
	logger.Init(cfg.LogLevel)

	store, err := persistence.GetManager(paths.GetDataDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state store: %v\n", err)
		os.Exit(1)
	}

	client := fetch.NewClient(time.Duration(cfg.RequestTimeoutSeconds) * time.Second)
	session := account.NewSession(client, store)
	resolver := stream.NewResolver(session, client)
	scheduler, err := schedule.NewFetcher(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize schedule fetcher: %v\n", err)
		os.Exit(1)
	}
	searcher := search.NewClient(client)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "login":
		cmdLogin(session, cfg, os.Args[2:])
	case "logout":
		if session.Logout() {
			fmt.Println("Logged out")
		} else {
			fmt.Println("Logged out locally; server-side logout failed")
		}
	case "status":
		cmdStatus(session)
	case "schedule":
		cmdSchedule(scheduler, os.Args[2:])
	case "nownext":
		cmdNowNext(scheduler)
	case "search":
		cmdSearch(searcher, os.Args[2:])
	case "live":
		cmdLive(resolver, os.Args[2:])
	case "catchup":
		cmdCatchup(resolver, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: itvhub <command> [args]

commands:
  login [username password]    log in (falls back to configured credentials)
  logout                       log out and clear the stored session
  status                       show whether a session is stored
  schedule [hours]             live schedule for the next hours (default 4)
  nownext                      what is on now and next per channel
  search <query>               search programmes, specials and films
  live <channel> [start-time]  resolve a live channel; with a start time
                               (2006-01-02T15:04:05) plays from the start
  catchup <playlist-url>       resolve a catchup episode`)
}

func cmdLogin(session *account.Session, cfg *config.Config, args []string) {
	username, password := cfg.Username, cfg.Password
	if len(args) >= 2 {
		username, password = args[0], args[1]
	}
	if username == "" || password == "" {
		fmt.Fprintln(os.Stderr, "No credentials given or configured")
		os.Exit(2)
	}
	if err := session.Login(username, password); err != nil {
		var credErr *account.InvalidCredentialsError
		if errors.As(err, &credErr) {
			fmt.Fprintf(os.Stderr, "Login rejected, check your %s\n", credErr.Field)
		} else {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Println("Logged in")
}

func cmdStatus(session *account.Session) {
	if _, err := session.AccessToken(); err != nil {
		fmt.Println("Not logged in")
		return
	}
	fmt.Println("Logged in, session stored")
}

func cmdSchedule(scheduler *schedule.Fetcher, args []string) {
	hours := 4
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			hours = n
		}
	}
	channels, err := scheduler.LiveSchedule(hours)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Schedule unavailable: %v\n", err)
		os.Exit(1)
	}
	for _, ch := range channels {
		fmt.Printf("%s\n", ch.Channel.Name)
		for _, slot := range ch.Slots {
			fmt.Printf("  %s  %s\n", slot.StartTime, slot.ProgrammeTitle)
		}
	}
}

func cmdNowNext(scheduler *schedule.Fetcher) {
	channels, err := scheduler.NowNext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Now/next unavailable: %v\n", err)
		os.Exit(1)
	}
	for _, ch := range channels {
		fmt.Printf("%-12s now: %-40s next: %s\n", ch.Name, ch.Now.Title, ch.Next.Title)
	}
}

func cmdSearch(searcher *search.Client, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "search needs a query")
		os.Exit(2)
	}
	results, err := searcher.Search(strings.Join(args, " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No results")
		return
	}
	for _, r := range results {
		fmt.Printf("%-10s %-6s %s\n", r.EntityType, r.Tier, r.Title)
	}
}

func cmdLive(resolver *stream.Resolver, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "live needs a channel name, e.g. ITV")
		os.Exit(2)
	}
	opts := stream.LiveOptions{
		Title:   args[0],
		Confirm: confirmOnTerminal,
	}
	if len(args) > 1 {
		start, err := time.Parse("2006-01-02T15:04:05", args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bad start time %q: %v\n", args[1], err)
			os.Exit(2)
		}
		opts.StartTime = start
		opts.PlayFromStart = true
	}
	printResolved(resolver.ResolveLive(args[0], opts))
}

func cmdCatchup(resolver *stream.Resolver, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "catchup needs an episode playlist URL")
		os.Exit(2)
	}
	printResolved(resolver.ResolveCatchup(args[0]))
}

func printResolved(resolved *stream.ResolvedStream, err error) {
	if err != nil {
		if errors.Is(err, stream.ErrAuthenticationFailed) {
			fmt.Fprintln(os.Stderr, "Not logged in; run: itvhub login")
		} else {
			fmt.Fprintf(os.Stderr, "Resolution failed: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Printf("manifest:    %s\n", resolved.ManifestURL)
	fmt.Printf("key service: %s\n", resolved.KeyServiceURL)
	if resolved.SubtitleURL != "" {
		fmt.Printf("subtitles:   %s\n", resolved.SubtitleURL)
	}
}

// confirmOnTerminal is the host-owned play-from-start prompt.
func confirmOnTerminal(title string) bool {
	fmt.Printf("Play %q from the start? [y/N] ", title)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
