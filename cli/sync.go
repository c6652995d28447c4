// ABOUTME: Sync CLI commands
// ABOUTME: Handles OAuth connect, the long-running service, and one-shot sync runs
package cli

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/term"

	"github.com/harperreed/fitsync/ingest"
	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/sync"
	"github.com/harperreed/fitsync/web"
)

// ServeCommand runs the webhook server and the Whoop poll loop until interrupted.
func ServeCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	skipStartup := fs.Bool("skip-startup-sync", false, "Don't run a poll and backfill at startup")
	_ = fs.Parse(args)

	cfg := app.Config
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := app.Poller()
	if !*skipStartup {
		go func() {
			if err := poller.Poll(ctx); err != nil {
				app.Logger.Warn("startup whoop poll failed", "error", err)
			}
			if err := app.Backfill().Run(ctx, cfg.StravaBackfillDays); err != nil {
				app.Logger.Warn("startup strava backfill failed", "error", err)
			}
		}()
	}

	scheduler := ingest.NewScheduler(poller.Poll, cfg.WhoopPollInterval, app.Logger)
	go scheduler.Start(ctx)

	srv := web.NewServer(cfg.HTTPAddress, web.Options{
		Webhook:       app.Webhook(),
		Tokens:        app.Tokens,
		States:        app.State,
		Records:       app.Ledger,
		OAuth:         app.OAuth,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		Logger:        app.Logger,
	})
	err := web.Run(ctx, srv, app.Logger)

	stop()
	scheduler.Wait()
	return err
}

// PollCommand runs one Whoop poll cycle.
func PollCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("poll", flag.ExitOnError)
	lookback := fs.Duration("lookback", app.Config.WhoopLookback, "How far back to fetch Whoop records")
	_ = fs.Parse(args)

	poller := ingest.NewPoller(app.Deps(), app.Whoop, *lookback)
	if err := poller.Poll(ctx); err != nil {
		return fmt.Errorf("whoop poll failed: %w", err)
	}
	fmt.Println("✓ Whoop poll complete")
	return nil
}

// BackfillCommand syncs recent Strava activities.
func BackfillCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	days := fs.Int("days", app.Config.StravaBackfillDays, fmt.Sprintf("Days to look back (1-%d)", ingest.MaxBackfillDays))
	_ = fs.Parse(args)

	if err := app.Backfill().Run(ctx, *days); err != nil {
		return fmt.Errorf("strava backfill failed: %w", err)
	}
	fmt.Printf("✓ Strava backfill of the last %d days complete\n", *days)
	return nil
}

// DeleteCommand removes one synced activity and its calendar event.
func DeleteCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() != 2 {
		return fmt.Errorf("usage: fitsync delete <strava|whoop> <source-id>")
	}
	source, err := models.ParseSource(fs.Arg(0))
	if err != nil {
		return err
	}
	sourceID := fs.Arg(1)

	token, err := app.Provider.ValidToken(ctx, sync.ServiceGoogle)
	if err != nil {
		return err
	}
	calendarID, err := app.Calendars.CalendarID(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to resolve calendar: %w", err)
	}

	removed, err := app.Engine.DeleteActivity(ctx, sync.DeleteRequest{
		Source:     source,
		SourceID:   sourceID,
		Token:      token,
		CalendarID: calendarID,
	})
	if err != nil {
		return err
	}
	if !removed {
		fmt.Printf("No synced record for %s\n", models.RecordKey(source, sourceID))
		return nil
	}
	fmt.Printf("✓ Deleted %s and its calendar event\n", models.RecordKey(source, sourceID))
	return nil
}

// AuthCommand connects a service through a local OAuth callback.
func AuthCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	noBrowser := fs.Bool("no-browser", false, "Print the consent URL without opening a browser")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: fitsync auth <%s>", strings.Join(sync.Services, "|"))
	}
	service := fs.Arg(0)
	config, ok := app.OAuth[service]
	if !ok {
		return fmt.Errorf("%s is not configured: set %s_CLIENT_ID and %s_CLIENT_SECRET",
			service, strings.ToUpper(service), strings.ToUpper(service))
	}

	redirect, err := url.Parse(config.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URL: %w", err)
	}
	state, err := randomState()
	if err != nil {
		return err
	}

	codeChan := make(chan string, 2)
	errChan := make(chan error, 2)
	send := func(err error) {
		select {
		case errChan <- err:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := query.Get("code")
		if code == "" {
			send(fmt.Errorf("no authorization code received: %s", query.Get("error")))
			http.Error(w, "authorization failed", http.StatusBadRequest)
			return
		}
		select {
		case codeChan <- code:
		default:
		}
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	server := &http.Server{Addr: redirect.Host, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			send(fmt.Errorf("callback server: %w", err))
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	var opts []oauth2.AuthCodeOption
	if service == sync.ServiceGoogle {
		opts = append(opts, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	}
	authURL := config.AuthCodeURL(state, opts...)

	fmt.Printf("Opening browser to connect %s...\n", service)
	fmt.Printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
	if !*noBrowser {
		_ = openBrowser(authURL)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("Waiting for the browser callback. If it can't reach this machine, paste the")
		fmt.Print("redirected URL (or just its code) here: ")
		go func() {
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return
			}
			if code := extractCode(line); code != "" {
				select {
				case codeChan <- code:
				default:
				}
			}
		}()
	}

	var code string
	for code == "" {
		select {
		case code = <-codeChan:
		case err := <-errChan:
			if !interactive {
				return fmt.Errorf("OAuth flow failed: %w", err)
			}
			fmt.Printf("\n%v\nPaste the code to continue: ", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}
	if err := app.Tokens.Save(ctx, service, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Printf("\n✓ Connected %s\n", service)
	return nil
}

// extractCode accepts either a bare authorization code or the full
// redirect URL the provider sent the browser to.
func extractCode(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if strings.Contains(input, "?") {
		u, err := url.Parse(input)
		if err != nil {
			return ""
		}
		return u.Query().Get("code")
	}
	return input
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
