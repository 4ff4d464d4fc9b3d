package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"voxsearch/audio"
	"voxsearch/config"
	"voxsearch/db"
	"voxsearch/llm"
	"voxsearch/rag"
	"voxsearch/search"
	"voxsearch/session"
	"voxsearch/stt"
	"voxsearch/web"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(transcribeCmd)

	rootCmd.PersistentFlags().String("search-url", "", "Search service base URL")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection URL")
	serveCmd.Flags().Int("web-port", 8080, "Web server port")
	transcribeCmd.Flags().String("language", "", "Language hint (ISO 639-1 code)")
	transcribeCmd.Flags().String("model-size", "base", "Speech model size")

	viper.BindPFlag("search_url", rootCmd.PersistentFlags().Lookup("search-url"))
	viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	viper.BindPFlag("web_port", serveCmd.Flags().Lookup("web-port"))
}

func initConfig() {
	godotenv.Load()

	config.SetDefaults()
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	logger = log.New(os.Stderr)
	if viper.GetBool("debug") {
		logger.SetLevel(log.DebugLevel)
	}
}

var rootCmd = &cobra.Command{
	Use:   "voxsearch",
	Short: "Voice-driven search over a document index",
	Long:  `Voxsearch transcribes speech in chunks, searches a document index with the transcript, and answers with a language model grounded on the results.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE:  runServe,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question from the command line",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file.wav>",
	Short: "Transcribe a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, configStore, cleanup, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	settings := config.NewManager(configStore)
	if err := settings.Load(ctx); err != nil {
		logger.Warn("failed to load stored settings, using defaults", "error", err)
	}

	searcher := search.NewClient(
		viper.GetString("search_url"),
		viper.GetString("search_api_key"),
		logger.With("component", "search"),
	)

	model, closeModel, err := buildLanguageModel(ctx, settings.Settings().AnswerModel)
	if err != nil {
		return err
	}
	defer closeModel()

	answerer := rag.NewAnswerer(searcher, model, settings.Settings().SearchLimit,
		logger.With("component", "rag"))

	server := &web.Server{
		Logger:         logger.With("component", "web"),
		Store:          store,
		Settings:       settings,
		Answerer:       answerer,
		Searcher:       searcher,
		NewTranscriber: transcriberFor,
		ICE:            buildICEProvider(),

		SilenceThreshold: viper.GetFloat64("silence_thresh"),
		MinDuration:      time.Duration(viper.GetFloat64("min_duration_s") * float64(time.Second)),
	}

	port := viper.GetInt("web_port")
	logger.Info("starting web server", "port", port)
	return server.Serve(port)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, configStore, cleanup, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	settings := config.NewManager(configStore)
	if err := settings.Load(ctx); err != nil {
		logger.Warn("failed to load stored settings, using defaults", "error", err)
	}

	searcher := search.NewClient(
		viper.GetString("search_url"),
		viper.GetString("search_api_key"),
		logger.With("component", "search"),
	)

	model, closeModel, err := buildLanguageModel(ctx, settings.Settings().AnswerModel)
	if err != nil {
		return err
	}
	defer closeModel()

	answerer := rag.NewAnswerer(searcher, model, settings.Settings().SearchLimit, logger)
	answer := answerer.Ask(ctx, args[0])

	if answer.Degraded != "" {
		logger.Warn("degraded answer", "reason", answer.Degraded)
	}
	fmt.Println(answer.Text)
	return nil
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	samples, sampleRate, channels, err := audio.DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}

	size, _ := cmd.Flags().GetString("model-size")
	if !stt.ValidModelSize(size) {
		return fmt.Errorf("unknown model size %q", size)
	}
	language, _ := cmd.Flags().GetString("language")
	if !stt.ValidLanguage(language) {
		return fmt.Errorf("unknown language %q", language)
	}

	frame := audio.Frame{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		ReceivedAt: time.Now(),
	}
	mono := audio.Normalize(frame)

	transcriber := transcriberFor(config.Settings{ModelSize: size})
	text, err := transcriber.Transcribe(ctx, mono, language)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	fmt.Println(text)
	return nil
}

// openStores picks Postgres-backed stores when DATABASE_URL is set and
// falls back to process memory otherwise.
func openStores(ctx context.Context) (session.Store, config.Store, func(), error) {
	databaseURL := viper.GetString("database_url")
	if databaseURL == "" {
		logger.Info("no database configured, conversation history is in-memory")
		return session.NewMemoryStore(), nil, func() {}, nil
	}

	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	return db.NewMessageStore(pool), db.NewConfigStore(pool), pool.Close, nil
}

// transcriberFor builds the speech client for the selected model size.
// A fresh client per capture session keeps size changes cheap.
func transcriberFor(settings config.Settings) stt.Transcriber {
	model := viper.GetString("stt_model")
	if model == "" {
		model = stt.ModelForSize(settings.ModelSize)
	}
	return stt.NewWhisper(stt.WhisperOptions{
		APIKey:  viper.GetString("openai_api_key"),
		BaseURL: viper.GetString("stt_base_url"),
		Model:   model,
	}, logger.With("component", "stt"))
}

func buildLanguageModel(ctx context.Context, name string) (llm.LanguageModel, func(), error) {
	switch name {
	case "gemini":
		model, err := llm.NewGeminiLanguageModel(ctx,
			viper.GetString("gemini_api_key"),
			viper.GetString("gemini_model"))
		if err != nil {
			return nil, nil, fmt.Errorf("gemini client: %w", err)
		}
		return model, func() { model.Close() }, nil
	default:
		model := llm.NewOpenAILanguageModel(
			viper.GetString("openai_api_key"),
			viper.GetString("openai_model"))
		return model, func() {}, nil
	}
}

func buildICEProvider() web.ICEProvider {
	sid := viper.GetString("twilio_account_sid")
	token := viper.GetString("twilio_auth_token")
	if sid != "" && token != "" {
		return web.NewTwilioICE(sid, token, logger.With("component", "ice"))
	}
	return web.StaticICE{}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
