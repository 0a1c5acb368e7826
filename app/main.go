package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/sashabaranov/go-openai"
	"github.com/jessevdk/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/chat-guard/app/events"
	"github.com/umputun/chat-guard/app/storage"
	"github.com/umputun/chat-guard/app/storage/engine"
	"github.com/umputun/chat-guard/app/verifier"
	"github.com/umputun/chat-guard/app/webapi"
	"github.com/umputun/chat-guard/lib/guard"
	"github.com/umputun/chat-guard/lib/guard/plugin"
	"github.com/umputun/chat-guard/lib/modcheck"
)

type options struct {
	Telegram struct {
		Token   string        `long:"token" env:"TOKEN" description:"telegram bot token" required:"true"`
		Timeout time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"http client timeout for telegram"`
	} `group:"telegram" namespace:"telegram" env-namespace:"TELEGRAM"`

	AdminRoom string `long:"admin.room" env:"ADMIN_ROOM" description:"admin room id, verdict reports and dispositions"`
	InstanceID string `long:"instance-id" env:"INSTANCE_ID" default:"chat-guard" description:"deployment id, scopes all storage"`

	DB struct {
		File string `long:"file" env:"FILE" default:"chat-guard.db" description:"sqlite database file"`
		URL  string `long:"url" env:"URL" description:"postgres connection url, sqlite if empty"`
	} `group:"db" namespace:"db" env-namespace:"DB"`

	OpenAI struct {
		Token             string  `long:"token" env:"TOKEN" description:"openai token, classifiers disabled if not set"`
		Model             string  `long:"model" env:"MODEL" default:"gpt-4o" description:"model for topic and vision classification"`
		ModerationModel   string  `long:"moderation-model" env:"MODERATION_MODEL" default:"omni-moderation-latest" description:"moderation endpoint model"`
		TopicPromptFile   string  `long:"topic-prompt-file" env:"TOPIC_PROMPT_FILE" description:"topic prompt file, watched for changes"`
		MaxTokensResponse int     `long:"max-tokens-response" env:"MAX_TOKENS_RESPONSE" default:"1024" description:"openai max tokens in response"`
		MaxTokensRequest  int     `long:"max-tokens-request" env:"MAX_TOKENS_REQUEST" default:"2048" description:"openai max tokens in request"`
		MaxSymbolsRequest int     `long:"max-symbols-request" env:"MAX_SYMBOLS_REQUEST" default:"16000" description:"openai max symbols in request, failback if tokenizer failed"`
		ScoreThreshold    float64 `long:"score-threshold" env:"SCORE_THRESHOLD" default:"0.75" description:"moderation category score to flag on"`
		TopicConfidence   float64 `long:"topic-confidence" env:"TOPIC_CONFIDENCE" default:"0.7" description:"min confidence for a topic verdict"`
		MediaConfidence   float64 `long:"media-confidence" env:"MEDIA_CONFIDENCE" default:"0.6" description:"min confidence for a media verdict"`
	} `group:"openai" namespace:"openai" env-namespace:"OPENAI"`

	Verification struct {
		Timeout       time.Duration `long:"timeout" env:"TIMEOUT" default:"5m" description:"time to answer the challenge"`
		SweepInterval time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" default:"1m" description:"expiry sweep cadence"`
		CodeLength    int           `long:"code-length" env:"CODE_LENGTH" default:"5" description:"challenge code length"`
	} `group:"verification" namespace:"verification" env-namespace:"VERIFICATION"`

	Moderation struct {
		RepeatThreshold int           `long:"repeat-threshold" env:"REPEAT_THRESHOLD" default:"3" description:"identical messages in the window to flag"`
		RepeatWindow    time.Duration `long:"repeat-window" env:"REPEAT_WINDOW" default:"1m" description:"repeat check sliding window"`
		FrameCount      int           `long:"frame-count" env:"FRAME_COUNT" default:"4" description:"frames sampled per video or gif"`
		PluginsDir      string        `long:"plugins-dir" env:"PLUGINS_DIR" description:"directory with lua check scripts"`
	} `group:"moderation" namespace:"moderation" env-namespace:"MODERATION"`

	Logger struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable rotated ledger log"`
		FileName   string `long:"file" env:"FILE" default:"chat-guard.log" description:"location of ledger log"`
		MaxSize    string `long:"max-size" env:"MAX_SIZE" default:"100M" description:"maximum size before it gets rotated"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"10" description:"maximum number of old log files to retain"`
	} `group:"logger" namespace:"logger" env-namespace:"LOGGER"`

	Server struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable web api"`
		Listen     string `long:"listen" env:"LISTEN" default:":8080" description:"web api listen address"`
		AuthPasswd string `long:"auth" env:"AUTH" description:"basic auth password for user chat-guard, open if empty"`
	} `group:"server" namespace:"server" env-namespace:"SERVER"`

	Dry bool `long:"dry" env:"DRY" description:"dry mode, report but don't delete or remove"`
	Dbg bool `long:"dbg" env:"DEBUG" description:"debug mode"`
}

var revision = "local"

func main() {
	fmt.Printf("chat-guard %s\n", revision)
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	p.SubcommandsOptional = true
	if _, err := p.Parse(); err != nil {
		if err.(*flags.Error).Type != flags.ErrHelp {
			log.Printf("[ERROR] cli error: %v", err)
		}
		os.Exit(2)
	}

	setupLog(opts.Dbg, opts.Telegram.Token, opts.OpenAI.Token)
	log.Printf("[DEBUG] options: %+v", opts)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		// catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	if err := execute(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, opts options) error {
	if opts.Dry {
		log.Print("[WARN] dry mode, no deletions or removals")
	}

	db, err := makeDB(opts)
	if err != nil {
		return fmt.Errorf("can't make db engine, %w", err)
	}

	modLog, err := storage.NewModLog(ctx, db)
	if err != nil {
		return fmt.Errorf("can't make moderation ledger, %w", err)
	}
	verifications, err := storage.NewVerifications(ctx, db)
	if err != nil {
		return fmt.Errorf("can't make verification store, %w", err)
	}
	messages, err := storage.NewMessages(ctx, db)
	if err != nil {
		return fmt.Errorf("can't make message archive, %w", err)
	}

	detector, err := makeDetector(ctx, opts)
	if err != nil {
		return fmt.Errorf("can't make detector, %w", err)
	}

	tbAPI, err := tbapi.NewBotAPI(opts.Telegram.Token)
	if err != nil {
		return fmt.Errorf("can't make telegram bot, %w", err)
	}
	transport := &events.TelegramTransport{
		API:        tbAPI,
		Timeout:    opts.Telegram.Timeout,
		HTTPClient: &http.Client{Timeout: opts.Telegram.Timeout},
	}

	verifSvc := verifier.NewService(verifications, transport, &verifier.CaptchaChallenger{}, verifier.Params{
		Timeout:       opts.Verification.Timeout,
		SweepInterval: opts.Verification.SweepInterval,
		CodeLength:    opts.Verification.CodeLength,
	})
	go func() {
		if err := verifSvc.Run(ctx); err != nil {
			log.Printf("[WARN] verification sweep terminated, %v", err)
		}
	}()

	// make ledger writer and wrap the store so flagged messages also land
	// in the rotated json log
	ledgerWr, err := makeLedgerWriter(opts)
	if err != nil {
		return fmt.Errorf("can't make ledger log writer, %w", err)
	}
	defer ledgerWr.Close()
	ledger := &loggedLedger{ModLog: modLog, wr: ledgerWr}

	if opts.Server.Enabled {
		srv := webapi.NewServer(webapi.Config{
			Version:    revision,
			ListenAddr: opts.Server.Listen,
			ModLog:     modLog,
			Stats:      messages,
			Moderator:  detector,
			AuthPasswd: opts.Server.AuthPasswd,
			Dbg:        opts.Dbg,
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("[WARN] web api terminated, %v", err)
			}
		}()
	}

	listener := &events.Listener{
		Transport:   transport,
		Moderator:   detector,
		Verifier:    verifSvc,
		ModLog:      ledger,
		Archive:     messages,
		AdminRoomID: opts.AdminRoom,
		Dry:         opts.Dry,
	}
	log.Printf("[DEBUG] listener config: {admin: %s, dry: %v, instance: %s}", opts.AdminRoom, opts.Dry, opts.InstanceID)

	// run listener and event processor loop
	if err := listener.Do(ctx); err != nil {
		return fmt.Errorf("listener failed, %w", err)
	}
	return nil
}

func makeDB(opts options) (*engine.SQL, error) {
	if opts.DB.URL != "" {
		log.Printf("[INFO] using postgres storage")
		return engine.NewPostgres(opts.DB.URL, opts.InstanceID)
	}
	log.Printf("[INFO] using sqlite storage %s", opts.DB.File)
	return engine.NewSqlite(opts.DB.File, opts.InstanceID)
}

func makeDetector(ctx context.Context, opts options) (*guard.Detector, error) {
	detectorConfig := guard.Config{
		RepeatThreshold: opts.Moderation.RepeatThreshold,
		RepeatWindow:    opts.Moderation.RepeatWindow,
		FrameCount:      opts.Moderation.FrameCount,
	}
	detector := guard.NewDetector(detectorConfig)
	log.Printf("[DEBUG] detector config: %+v", detectorConfig)

	if opts.OpenAI.Token != "" {
		log.Printf("[WARN] openai classifiers enabled")
		gatewayConfig := guard.GatewayConfig{
			Model:             opts.OpenAI.Model,
			ModerationModel:   opts.OpenAI.ModerationModel,
			MaxTokensResponse: opts.OpenAI.MaxTokensResponse,
			MaxTokensRequest:  opts.OpenAI.MaxTokensRequest,
			MaxSymbolsRequest: opts.OpenAI.MaxSymbolsRequest,
			ScoreThreshold:    opts.OpenAI.ScoreThreshold,
			TopicConfidence:   opts.OpenAI.TopicConfidence,
			MediaConfidence:   opts.OpenAI.MediaConfidence,
		}
		log.Printf("[DEBUG] openai config: %+v", gatewayConfig)
		detector.WithOpenAI(openai.NewClient(opts.OpenAI.Token), gatewayConfig)

		if opts.OpenAI.TopicPromptFile != "" {
			go func() {
				if err := detector.WatchTopicPrompt(ctx, opts.OpenAI.TopicPromptFile); err != nil {
					log.Printf("[WARN] topic prompt watcher terminated, %v", err)
				}
			}()
		}
	}

	if opts.Moderation.PluginsDir != "" {
		checker := plugin.NewChecker()
		if err := checker.LoadDirectory(opts.Moderation.PluginsDir); err != nil {
			return nil, fmt.Errorf("can't load plugins from %s, %w", opts.Moderation.PluginsDir, err)
		}
		detector.WithPlugins(checker)
		log.Printf("[DEBUG] plugins loaded from %s", opts.Moderation.PluginsDir)
	}
	return detector, nil
}

// loggedLedger decorates the moderation ledger, writing each created entry as a
// json line to the rotated log in addition to the store.
type loggedLedger struct {
	*storage.ModLog
	wr io.Writer
}

func (l *loggedLedger) Create(ctx context.Context, entry storage.ModLogEntry, verdict *modcheck.Verdict) (int64, error) {
	id, err := l.ModLog.Create(ctx, entry, verdict)
	if err != nil {
		return id, err
	}
	m := struct {
		TimeStamp   string `json:"ts"`
		ID          int64  `json:"id"`
		Room        string `json:"room"`
		DisplayName string `json:"display_name"`
		Kind        string `json:"kind"`
		Reason      string `json:"reason"`
		Body        string `json:"body"`
	}{
		TimeStamp:   time.Now().In(time.Local).Format(time.RFC3339),
		ID:          id,
		Room:        entry.Room,
		DisplayName: entry.DisplayName,
		Kind:        string(verdict.Kind),
		Reason:      verdict.Reason,
		Body:        strings.TrimSpace(strings.ReplaceAll(verdict.LoggedBody(entry.Body), "\n", " ")),
	}
	line, jerr := json.Marshal(&m)
	if jerr != nil {
		log.Printf("[WARN] can't marshal ledger line, %v", jerr)
		return id, nil
	}
	if _, werr := l.wr.Write(append(line, '\n')); werr != nil {
		log.Printf("[WARN] can't write to ledger log, %v", werr)
	}
	return id, nil
}

// makeLedgerWriter parses options and makes a lumberjack writer with rotation
func makeLedgerWriter(opts options) (io.WriteCloser, error) {
	if !opts.Logger.Enabled {
		return nopWriteCloser{io.Discard}, nil
	}

	sizeParse := func(inp string) (uint64, error) {
		if inp == "" {
			return 0, errors.New("empty value")
		}
		for i, sfx := range []string{"k", "m", "g", "t"} {
			if strings.HasSuffix(inp, strings.ToUpper(sfx)) || strings.HasSuffix(inp, strings.ToLower(sfx)) {
				val, err := strconv.Atoi(inp[:len(inp)-1])
				if err != nil {
					return 0, fmt.Errorf("can't parse %s: %w", inp, err)
				}
				return uint64(float64(val) * math.Pow(float64(1024), float64(i+1))), nil
			}
		}
		return strconv.ParseUint(inp, 10, 64)
	}

	maxSize, perr := sizeParse(opts.Logger.MaxSize)
	if perr != nil {
		return nil, fmt.Errorf("can't parse logger MaxSize: %w", perr)
	}

	maxSize /= 1048576

	log.Printf("[INFO] ledger log enabled for %s, max size %dM", opts.Logger.FileName, maxSize)
	return &lumberjack.Logger{
		Filename:   opts.Logger.FileName,
		MaxSize:    int(maxSize), // in MB
		MaxBackups: opts.Logger.MaxBackups,
		Compress:   true,
		LocalTime:  true,
	}, nil
}

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Close() error { return nil }

func setupLog(dbg bool, secrets ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
