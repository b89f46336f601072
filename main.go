package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Command names.
const (
	cmdRun  = "run"
	cmdHelp = "help"
)

// errRunFailed maps a completed-but-unsuccessful batch to exit code 1. The
// report has already been rendered by the time it is returned.
var errRunFailed = errors.New("run failed")

func main() {
	_ = godotenv.Load()
	log := newLogger()
	if err := run(context.Background(), log, os.Args[1:]); err != nil {
		if !errors.Is(err, errRunFailed) {
			log.err(err.Error())
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger, args []string) error {
	if len(args) == 0 {
		args = []string{cmdRun}
	}

	switch args[0] {
	case cmdHelp, "-h", "--help":
		printUsage(os.Stdout)
		return nil
	case cmdRun:
		return runCheckIn(ctx, log, args[1:])
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "rainyun-checkin: Rainyun daily check-in automation")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  rainyun-checkin run [--config PATH] [--visible] [--cooldown DURATION]")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Options:")
	_, _ = fmt.Fprintln(w, "  --config    Path to config.json (default: config.json)")
	_, _ = fmt.Fprintln(w, "  --visible   Run the browser with a visible window")
	_, _ = fmt.Fprintln(w, "  --cooldown  Pause between accounts (default: from config)")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Environment:")
	_, _ = fmt.Fprintln(w, "  RAINYUN_ACCOUNTS   JSON array or username----password lines")
	_, _ = fmt.Fprintln(w, "  RAINYUN_USERNAME   Single account username")
	_, _ = fmt.Fprintln(w, "  RAINYUN_PASSWORD   Single account password")
	_, _ = fmt.Fprintln(w, "  OPENAI_API_KEY     Captcha OCR API key")
	_, _ = fmt.Fprintln(w, "  NO_COLOR           Disable colored output")
}

func runCheckIn(ctx context.Context, log *logger, args []string) error {
	fs := flag.NewFlagSet(cmdRun, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		configPath string
		visible    bool
		cooldown   time.Duration
	)
	fs.StringVar(&configPath, "config", "config.json", "config path")
	fs.BoolVar(&visible, "visible", false, "run the browser with a visible window")
	fs.DurationVar(&cooldown, "cooldown", 0, "pause between accounts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if visible {
		cfg.Headless = false
	}
	if cooldown > 0 {
		cfg.CooldownSeconds = int(cooldown / time.Second)
	}

	accounts := resolveAccounts(cfg)
	if len(accounts) == 0 {
		return errors.New("no accounts configured (set RAINYUN_ACCOUNTS or RAINYUN_USERNAME/RAINYUN_PASSWORD)")
	}
	log.infof("accounts: %d, site: %s", len(accounts), cfg.BaseURL)

	var classifier captchaClassifier
	switch ocr, err := newOCRClient(cfg, log); {
	case err != nil:
		log.warnf("captcha OCR disabled: %s", err)
	case ocr == nil:
		log.info("captcha OCR disabled by config")
	default:
		classifier = ocr
	}

	report := newRunner(cfg, classifier, log).runAll(ctx, accounts)
	report.render(log)

	if report.successCount() == 0 {
		return errRunFailed
	}
	return nil
}
