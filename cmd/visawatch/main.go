// Package main runs the visawatch appointment watcher: one persistent
// browser session that waits out the portal's waiting room, completes the
// two-step login (solving the CAPTCHA through a vision model), parks on
// the scheduling page, and keeps an in-page network hook installed that
// notifies when appointment days matching the configured date range show
// up.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/entrhq/visawatch/pkg/browser"
	"github.com/entrhq/visawatch/pkg/captcha"
	appconfig "github.com/entrhq/visawatch/pkg/config"
	"github.com/entrhq/visawatch/pkg/hook"
	"github.com/entrhq/visawatch/pkg/logging"
	"github.com/entrhq/visawatch/pkg/login"
	"github.com/entrhq/visawatch/pkg/portal"
	"github.com/entrhq/visawatch/pkg/slots"
	"github.com/entrhq/visawatch/pkg/ui"
	"github.com/entrhq/visawatch/pkg/watcher"
)

const version = "0.1.0" // Version of the visawatch watcher

// Flags holds the command line configuration.
type Flags struct {
	ConfigPath      string
	CredentialsPath string
	PrefsPath       string
	ProfileDir      string
	DebugDir        string
	Headless        bool
	ShowVersion     bool
}

func main() {
	flags := parseFlags()

	if flags.ShowVersion {
		fmt.Printf("visawatch v%s\n", version)
		return
	}

	// Create context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if runErr := run(ctx, flags); runErr != nil && ctx.Err() == nil {
		cancel()
		log.Fatalf("Application error: %v", runErr)
	}
}

// parseFlags parses command line flags and environment variables
func parseFlags() *Flags {
	flags := &Flags{}

	flag.StringVar(&flags.ConfigPath, "config", "visawatch.yaml", "Path to the run configuration file (YAML)")
	flag.StringVar(&flags.CredentialsPath, "credentials", "credential.json", "Path to the credential store (JSON)")
	flag.StringVar(&flags.PrefsPath, "prefs", "slot_prefs.json", "Path to the slot preference store (JSON)")
	flag.StringVar(&flags.ProfileDir, "profile", "", "Browser profile directory (overrides config)")
	flag.StringVar(&flags.DebugDir, "debug-dir", ".", "Directory for captcha debug images")
	flag.BoolVar(&flags.Headless, "headless", false, "Run the browser without a visible window")
	flag.BoolVar(&flags.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "visawatch - visa appointment portal watcher\n\n")
		fmt.Fprintf(os.Stderr, "Usage: visawatch [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY       Vision service API key (required for captcha solving)\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_BASE_URL      Vision service base URL (for compatible APIs)\n")
		fmt.Fprintf(os.Stderr, "  TELEGRAM_BOT_TOKEN   Telegram bot token for notifications\n")
		fmt.Fprintf(os.Stderr, "  TELEGRAM_CHAT_ID     Telegram chat id for notifications\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  visawatch                                # Watch with defaults\n")
		fmt.Fprintf(os.Stderr, "  visawatch -headless -profile ~/.visawatch/profile\n")
		fmt.Fprintf(os.Stderr, "  visawatch -config portal.yaml -credentials creds.json\n")
	}

	flag.Parse()
	return flags
}

func run(ctx context.Context, flags *Flags) error {
	// .env keeps the vision and telegram secrets out of the shell history.
	// A missing file is fine; the environment may already be set.
	_ = godotenv.Load()

	logger, err := logging.NewLogger("main")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging unavailable: %v\n", err)
	}
	defer logger.Close()
	logger.Infof("visawatch v%s starting (run %s)", version, logger.RunID())

	cfg, err := appconfig.Load(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if flags.ProfileDir != "" {
		cfg.ProfileDir = flags.ProfileDir
	}
	if flags.Headless {
		cfg.Headless = true
	}

	creds, err := appconfig.LoadCredentials(flags.CredentialsPath)
	if err != nil {
		return fmt.Errorf("credential error: %w", err)
	}

	pref, err := loadOrPromptPreference(flags.PrefsPath, logger)
	if err != nil {
		return err
	}
	if pref.Filtering() {
		logger.Infof("watching for slots between %s and %s", pref.StartDate, pref.EndDate)
	} else {
		logger.Infof("watching for any available slot")
	}

	if os.Getenv("OPENAI_API_KEY") == "" {
		logger.Warnf("OPENAI_API_KEY is not set; captcha solving will fail and login falls back to manual")
	}

	notifyURL := cfg.NotifyURL
	if notifyURL == "" {
		notifyURL = creds.NotifyURL()
	}

	manager := browser.NewManager()
	session, err := manager.Start(browser.Options{
		ProfileDir: cfg.ProfileDir,
		Headless:   cfg.Headless,
	})
	if err != nil {
		return fmt.Errorf("browser error: %w", err)
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Warnf("browser shutdown: %v", err)
		}
	}()

	logs, closeLogs := componentLoggers(logger, "captcha", "login", "hook", "watcher")
	defer closeLogs()

	w := buildWatcher(cfg, creds, pref, notifyURL, flags.DebugDir, session, logs)

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// componentLoggers opens one logger per component, all sharing the run's
// log file. Open failures are reported once through the main logger; the
// fallback loggers still work, so the run proceeds.
func componentLoggers(main *logging.Logger, components ...string) (map[string]*logging.Logger, func()) {
	logs := make(map[string]*logging.Logger, len(components))
	for _, component := range components {
		l, err := logging.NewLogger(component)
		if err != nil {
			main.Warnf("file logging unavailable for %s: %v", component, err)
		}
		logs[component] = l
	}
	return logs, func() {
		for _, l := range logs {
			if err := l.Close(); err != nil {
				main.Warnf("log close: %v", err)
			}
		}
	}
}

// buildWatcher wires the component graph for one run.
func buildWatcher(cfg *appconfig.Config, creds *appconfig.Credentials, pref slots.Preference, notifyURL, debugDir string, session *browser.Session, logs map[string]*logging.Logger) *watcher.Watcher {
	classifier := portal.NewClassifier(cfg.IdentityDomain, cfg.WaitingRoomMarker)

	extractor := captcha.NewExtractor(debugDir, appconfig.MaxRetries, appconfig.RetryDelay, logs["captcha"])
	transcriber := captcha.NewOpenAITranscriber(
		os.Getenv("OPENAI_API_KEY"),
		os.Getenv("OPENAI_BASE_URL"),
		cfg.SolverModel,
	)
	solver := captcha.NewSolver(transcriber, captcha.NewAttemptRegistry(),
		appconfig.MaxRetries, appconfig.RetryDelay, logs["captcha"])

	hookCfg := hook.Config{
		TargetSubstring: cfg.TargetEndpoint,
		NotifyURL:       notifyURL,
		RefreshURL:      cfg.SchedulingURL,
		StartDate:       pref.StartDate,
		EndDate:         pref.EndDate,
		ReloadAfterMs:   cfg.PageReload.Milliseconds(),
	}
	supervisor := hook.NewSupervisor(session, hookCfg, cfg.HookReinstall, pref, logs["hook"])
	supervisor.Audit(session)

	return watcher.New(watcher.Options{
		Page:       session,
		Classifier: classifier,
		NewLogin: func() watcher.LoginRunner {
			return login.NewMachine(login.Options{
				Page:      session,
				Extractor: extractor,
				Solver:    solver,
				Creds: login.Credentials{
					Username: creds.Username,
					Password: creds.Password,
					Answers:  creds.Answers(),
				},
				SchedulingDomain: cfg.SchedulingDomain,
				IdentityDomain:   cfg.IdentityDomain,
				Log:              logs["login"],
			})
		},
		Supervisor:      supervisor,
		SchedulingURL:   cfg.SchedulingURL,
		WaitingRoomPoll: cfg.WaitingRoomPoll,
		Log:             logs["watcher"],
	})
}

// loadOrPromptPreference reads the stored slot preference, prompting the
// user interactively on the first run. Declining the prompt records an
// empty (match-anything) preference so the question is asked only once.
func loadOrPromptPreference(path string, logger *logging.Logger) (slots.Preference, error) {
	store := appconfig.NewPrefStore(path)

	pref, ok, err := store.Load()
	if err != nil {
		return slots.Preference{}, fmt.Errorf("preference error: %w", err)
	}
	if ok {
		return pref, nil
	}

	pref, confirmed, err := ui.PromptDateRange()
	if err != nil {
		return slots.Preference{}, fmt.Errorf("preference prompt error: %w", err)
	}
	if !confirmed {
		logger.Warnf("date-range prompt skipped; watching without a date filter")
		pref = slots.Preference{}
	}

	if err := store.Save(pref); err != nil {
		return slots.Preference{}, fmt.Errorf("failed to save preference: %w", err)
	}
	return pref, nil
}
