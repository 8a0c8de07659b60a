package cmd

import (
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/conduit/adapter"
	redisadapter "github.com/pithecene-io/conduit/adapter/redis"
	"github.com/pithecene-io/conduit/adapter/webhook"
	"github.com/pithecene-io/conduit/cli/config"
	"github.com/pithecene-io/conduit/codec"
	"github.com/pithecene-io/conduit/iox"
	"github.com/pithecene-io/conduit/log"
	"github.com/pithecene-io/conduit/policy"
	"github.com/pithecene-io/conduit/runtime"
)

// PipeCommand returns the pipe command.
// This is the general execution entrypoint; the shortcut commands are
// pipe with a fixed stage list.
func PipeCommand() *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:    "stages",
			Aliases: []string{"s"},
			Usage:   `Stage chain, e.g. "upper|encrypt:chunk=4096" (or stages in config)`,
		},
	}, runFlags()...)
	return &cli.Command{
		Name:      "pipe",
		Usage:     "Stream input through a chain of stages",
		ArgsUsage: " ",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			return pipeAction(c, nil)
		},
	}
}

// EncryptCommand returns the encrypt shortcut.
func EncryptCommand() *cli.Command {
	return shortcutCommand("encrypt", "Encrypt input into length-prefixed frames",
		[]cli.Flag{chunkFlag()}, chunkedSpec("encrypt"))
}

// DecryptCommand returns the decrypt shortcut.
func DecryptCommand() *cli.Command {
	return shortcutCommand("decrypt", "Decrypt length-prefixed frames", nil, fixedSpec("decrypt"))
}

// CompressCommand returns the compress shortcut.
func CompressCommand() *cli.Command {
	return shortcutCommand("compress", "zstd-compress input into length-prefixed frames",
		[]cli.Flag{
			chunkFlag(),
			&cli.StringFlag{
				Name:  "level",
				Usage: "Compression level: fastest, default, better, best",
			},
		}, chunkedSpec("compress"))
}

// DecompressCommand returns the decompress shortcut.
func DecompressCommand() *cli.Command {
	return shortcutCommand("decompress", "Decompress length-prefixed zstd frames", nil, fixedSpec("decompress"))
}

func chunkFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "chunk",
		Usage: "Plaintext block size per frame (default: --chunk-size)",
	}
}

// specBuilder turns shortcut flags into the fixed stage list.
type specBuilder func(c *cli.Context) []codec.Spec

func fixedSpec(name string) specBuilder {
	return func(*cli.Context) []codec.Spec {
		return []codec.Spec{{Name: name}}
	}
}

// chunkedSpec copies --chunk and --level into stage args when set.
func chunkedSpec(name string) specBuilder {
	return func(c *cli.Context) []codec.Spec {
		args := map[string]string{}
		if c.IsSet("chunk") {
			args["chunk"] = strconv.Itoa(c.Int("chunk"))
		}
		if c.IsSet("level") {
			args["level"] = c.String("level")
		}
		if len(args) == 0 {
			args = nil
		}
		return []codec.Spec{{Name: name, Args: args}}
	}
}

func shortcutCommand(name, usage string, extra []cli.Flag, build specBuilder) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: " ",
		Flags:     append(extra, runFlags()...),
		Action: func(c *cli.Context) error {
			return pipeAction(c, build(c))
		},
	}
}

// runFlags are the flags shared by pipe and its shortcuts.
func runFlags() []cli.Flag {
	flags := []cli.Flag{
		// Endpoints
		&cli.StringFlag{
			Name:    "in",
			Aliases: []string{"i"},
			Usage:   `Source: "-" (stdin), a path, str:<text> or lode://<key>`,
			Value:   "-",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   `Sink: "-" (stdout), a path or lode://<key>`,
			Value:   "-",
		},
		&cli.StringFlag{
			Name:  "job-id",
			Usage: "Job ID recorded with the run (optional)",
		},

		// Cipher material
		&cli.StringFlag{
			Name:  "key",
			Usage: "Cipher key (hex:<64 hex chars> or base64:<...>)",
		},
		&cli.StringFlag{
			Name:  "key-file",
			Usage: "File holding the cipher key",
		},
		&cli.StringFlag{
			Name:    "passphrase",
			Usage:   "Derive the cipher key from a passphrase (argon2id)",
			EnvVars: []string{"CONDUIT_PASSPHRASE"},
		},
		&cli.StringFlag{
			Name:  "algorithm",
			Usage: "Cipher: aes-gcm or xchacha20poly1305",
		},

		// Sizes
		&cli.IntFlag{
			Name:  "read-size",
			Usage: "Source read size in bytes (default 8192)",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Default block size for framed codecs (default 8192)",
		},
		&cli.IntFlag{
			Name:  "max-frame-size",
			Usage: "Largest accepted frame payload in bytes (default 16 MiB)",
		},

		// Write policy
		&cli.StringFlag{
			Name:  "policy",
			Usage: "Sink write policy: strict, buffered or noop",
		},
		&cli.IntFlag{
			Name:  "buffer-bytes",
			Usage: "Buffered policy flush threshold in bytes",
		},

		// Adapter
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Adapter endpoint URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel or stream key",
		},
		&cli.StringFlag{
			Name:  "adapter-redis-mode",
			Usage: "Redis delivery: publish or stream",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as Key=Value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt adapter timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Adapter retry attempts",
			Value: webhook.DefaultRetries,
		},
		&cli.StringFlag{
			Name:  "adapter-encoding",
			Usage: "Event encoding: json or msgpack",
		},

		// Output
		&cli.StringFlag{
			Name:  "report",
			Usage: `Write a run report to this path ("-" for stderr)`,
		},
		&cli.StringFlag{
			Name:  "report-format",
			Usage: "Run report format: json or msgpack",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress the run summary",
		},
	}
	return append(flags, StorageFlags()...)
}

// pipeAction runs the pipeline. fixed, when non-nil, replaces --stages.
func pipeAction(c *cli.Context, fixed []codec.Spec) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return configExit(err)
	}

	specs := fixed
	if specs == nil {
		if specs, err = resolveStages(c, cfg); err != nil {
			return configExit(err)
		}
	}

	cipher, err := buildCipher(c, cfg)
	if err != nil {
		return configExit(err)
	}

	storage, err := resolveStorage(c, cfg)
	if err != nil {
		return configExit(err)
	}

	ad, err := buildAdapter(c, cfg)
	if err != nil {
		return configExit(err)
	}
	if ad != nil {
		defer iox.DiscardClose(ad)
	}

	meta := runtime.NewRunMeta(c.String("job-id"))
	logger := log.NewLogger(meta).WithOutput(c.App.ErrWriter)
	if lvl := resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.Log.Level })); lvl != "" {
		level, err := log.ParseLevel(lvl)
		if err != nil {
			return configExit(err)
		}
		logger.SetLevel(level)
	}

	runConfig := &runtime.RunConfig{
		RunMeta: meta,
		Source:  c.String("in"),
		Sink:    c.String("out"),
		Stages:  specs,
		Env: codec.Env{
			Cipher:       cipher,
			ChunkSize:    resolveInt(c, "chunk-size", configVal(cfg, func(c *config.Config) int { return c.ChunkSize })),
			MaxFrameSize: resolveInt(c, "max-frame-size", configVal(cfg, func(c *config.Config) int { return c.MaxFrameSize })),
		},
		ReadSize: resolveInt(c, "read-size", configVal(cfg, func(c *config.Config) int { return c.ReadSize })),
		Policy: policy.Config{
			Name:        resolveString(c, "policy", configVal(cfg, func(c *config.Config) string { return c.Policy.Name })),
			BufferBytes: resolveInt(c, "buffer-bytes", configVal(cfg, func(c *config.Config) int { return c.Policy.BufferBytes })),
		},
		Storage: storage,
		Adapter: ad,
		Stdin:   c.App.Reader,
		Stdout:  c.App.Writer,
		Logger:  logger,
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := runtime.Run(ctx, runConfig)
	if err != nil {
		if runtime.IsConfigError(err) {
			return configExit(err)
		}
		return cli.Exit(fmt.Sprintf("run failed: %v", err), runtime.ExitCodePipelineError)
	}

	code := runtime.ExitCode(result.Outcome.Status)

	reportPath := resolveString(c, "report", configVal(cfg, func(c *config.Config) string { return c.Report.Path }))
	if reportPath != "" {
		format := resolveString(c, "report-format", configVal(cfg, func(c *config.Config) string { return c.Report.Format }))
		if err := runtime.WriteRunReport(runtime.BuildRunReport(result, code), reportPath, format); err != nil {
			logger.Sugar().Warnf("run report not written: %v", err)
		}
	}

	if !c.Bool("quiet") {
		printRunResult(c.App.ErrWriter, result)
	}

	if code != runtime.ExitCodeSuccess {
		return cli.Exit(result.Outcome.Message, code)
	}
	return nil
}

// resolveStages returns the --stages chain, else the config's stages.
func resolveStages(c *cli.Context, cfg *config.Config) ([]codec.Spec, error) {
	if c.IsSet("stages") {
		return codec.ParseChain(c.String("stages"))
	}
	specs := configVal(cfg, func(c *config.Config) []codec.Spec { return c.Stages })
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no stages given (use --stages or stages in config)", codec.ErrInvalidSpec)
	}
	return specs, nil
}

// buildAdapter constructs the completion adapter, or nil when none is
// configured.
func buildAdapter(c *cli.Context, cfg *config.Config) (adapter.Adapter, error) {
	kind := resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type }))
	if kind == "" {
		return nil, nil
	}

	url := resolveString(c, "adapter-url", configVal(cfg, func(c *config.Config) string { return c.Adapter.URL }))
	timeout := resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Adapter.Timeout.Duration }))
	encoding := adapter.Encoding(resolveString(c, "adapter-encoding", configVal(cfg, func(c *config.Config) string { return c.Adapter.Encoding })))

	// Retries: an explicit 0 in config disables retries, so nil and 0 differ.
	retries := c.Int("adapter-retries")
	if !c.IsSet("adapter-retries") && cfg != nil && cfg.Adapter.Retries != nil {
		retries = *cfg.Adapter.Retries
	}

	switch kind {
	case "webhook":
		headers, err := resolveHeaders(c, cfg)
		if err != nil {
			return nil, err
		}
		return webhook.New(webhook.Config{
			URL:      url,
			Headers:  headers,
			Timeout:  timeout,
			Retries:  retries,
			Encoding: encoding,
		})
	case "redis":
		return redisadapter.New(redisadapter.Config{
			URL:      url,
			Channel:  resolveString(c, "adapter-channel", configVal(cfg, func(c *config.Config) string { return c.Adapter.Channel })),
			Mode:     redisadapter.Mode(resolveString(c, "adapter-redis-mode", configVal(cfg, func(c *config.Config) string { return c.Adapter.Mode }))),
			MaxLen:   configVal(cfg, func(c *config.Config) int64 { return c.Adapter.MaxLen }),
			Timeout:  timeout,
			Retries:  retries,
			Encoding: encoding,
		})
	default:
		return nil, fmt.Errorf("unknown adapter %q (must be webhook or redis)", kind)
	}
}

// resolveHeaders merges config headers with --adapter-header values.
// Flag headers win on key conflicts.
func resolveHeaders(c *cli.Context, cfg *config.Config) (map[string]string, error) {
	headers := map[string]string{}
	for k, v := range configVal(cfg, func(c *config.Config) map[string]string { return c.Adapter.Headers }) {
		headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (want Key=Value)", h)
		}
		headers[strings.TrimSpace(k)] = v
	}
	if len(headers) == 0 {
		return nil, nil
	}
	return headers, nil
}

func printRunResult(w io.Writer, result *runtime.RunResult) {
	_, _ = fmt.Fprintf(w, "\nrun_id=%s, outcome=%s, duration=%s\n",
		result.RunMeta.RunID,
		result.Outcome.Status,
		result.Duration.Round(time.Millisecond),
	)
	_, _ = fmt.Fprintf(w, "stages=%s, policy=%s\n", result.Stages, result.PolicyName)

	_, _ = fmt.Fprintf(w, "\n=== Run Result ===\n")
	_, _ = fmt.Fprintf(w, "Run ID:       %s\n", result.RunMeta.RunID)
	if result.RunMeta.JobID != nil {
		_, _ = fmt.Fprintf(w, "Job ID:       %s\n", *result.RunMeta.JobID)
	}
	_, _ = fmt.Fprintf(w, "Outcome:      %s\n", result.Outcome.Status)
	_, _ = fmt.Fprintf(w, "Message:      %s\n", result.Outcome.Message)
	if result.Outcome.Stage != "" {
		_, _ = fmt.Fprintf(w, "Stage:        %s\n", result.Outcome.Stage)
	}

	_, _ = fmt.Fprintf(w, "\n=== Stream ===\n")
	_, _ = fmt.Fprintf(w, "Chunks Read:  %d\n", result.Metrics.ChunksRead)
	_, _ = fmt.Fprintf(w, "Bytes In:     %d\n", result.Metrics.BytesIn)
	_, _ = fmt.Fprintf(w, "Bytes Out:    %d\n", result.Metrics.BytesOut)
	_, _ = fmt.Fprintf(w, "Need More:    %d\n", result.Metrics.NeedMoreInput)
	if result.Metrics.FramesEncoded+result.Metrics.FramesDecoded > 0 {
		_, _ = fmt.Fprintf(w, "Frames Out:   %d\n", result.Metrics.FramesEncoded)
		_, _ = fmt.Fprintf(w, "Frames In:    %d\n", result.Metrics.FramesDecoded)
	}

	_, _ = fmt.Fprintf(w, "\n=== Policy Stats ===\n")
	_, _ = fmt.Fprintf(w, "Writes:       %d\n", result.PolicyStats.Writes)
	_, _ = fmt.Fprintf(w, "Sink Writes:  %d\n", result.PolicyStats.SinkWrites)
	_, _ = fmt.Fprintf(w, "Flushes:      %d\n", result.PolicyStats.FlushCount)
	if result.Metrics.OutputDigest != "" {
		_, _ = fmt.Fprintf(w, "SHA-256:      %s\n", result.Metrics.OutputDigest)
	}
}
