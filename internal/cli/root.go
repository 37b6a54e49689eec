package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apresai/reelscript/internal/adjust"
	"github.com/apresai/reelscript/internal/pipeline"
	"github.com/apresai/reelscript/internal/progress"
	"github.com/apresai/reelscript/internal/store"
	"github.com/apresai/reelscript/internal/style"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "reelscript",
	Short:         "Generate and adjust short-video scripts in a creator's own style",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reelscript %s\n", Version)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a technical reel script from a free-text request",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

var adjustCmd = &cobra.Command{
	Use:   "adjust [prompt]",
	Short: "Adjust an existing script, optionally only one scene or paragraph",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdjust,
}

var scopeCmd = &cobra.Command{
	Use:   "scope [prompt]",
	Short: "Show which part of a script an adjustment request would change",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScope,
}

var trainStyleCmd = &cobra.Command{
	Use:   "train-style",
	Short: "Rebuild a creator's style profile from their saved scripts",
	RunE:  runTrainStyle,
}

var flagCmd = &cobra.Command{
	Use:   "flag <name> [on|off]",
	Short: "Read or set a feature flag in the script store",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runFlag,
}

var (
	flagCreator  string
	flagFile     string
	flagTitle    string
	flagScriptID string
	flagOutput   string
	flagSave     bool
	flagJSON     bool
	flagVerbose  bool
	flagOffline  bool
	flagProvider string
)

func init() {
	rootCmd.AddCommand(versionCmd, generateCmd, adjustCmd, scopeCmd, trainStyleCmd, flagCmd)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging (disables the progress bar)")
	pf.BoolVar(&flagOffline, "offline", false, "Skip AWS, Postgres and NATS; generate from the request alone")
	pf.StringVar(&flagProvider, "provider", "", "LLM provider: anthropic, bedrock, gemini, none (overrides LLM_PROVIDER)")
	pf.BoolVar(&flagJSON, "json", false, "Print the result and diagnostics as JSON")

	for _, c := range []*cobra.Command{generateCmd, adjustCmd, trainStyleCmd} {
		c.Flags().StringVarP(&flagCreator, "creator", "c", os.Getenv("REELSCRIPT_CREATOR"), "Creator id (default $REELSCRIPT_CREATOR)")
	}
	for _, c := range []*cobra.Command{generateCmd, adjustCmd} {
		c.Flags().BoolVar(&flagSave, "save", false, "Save the resulting script to the script store")
		c.Flags().StringVarP(&flagOutput, "output", "o", "", "Also write the script content to this file")
	}
	adjustCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Script to adjust (use - for stdin)")
	adjustCmd.Flags().StringVarP(&flagTitle, "title", "t", "", "Current script title")
	adjustCmd.Flags().StringVar(&flagScriptID, "script-id", "", "Id of the script being adjusted")
	_ = adjustCmd.MarkFlagRequired("file")
	scopeCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Script to inspect (use - for stdin)")
	_ = scopeCmd.MarkFlagRequired("file")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("erro: ")+err.Error())
	}
	return err
}

func startApp(cmd *cobra.Command) (*app, error) {
	return newApp(cmd.Context(), appOptions{
		verbose:  flagVerbose,
		offline:  flagOffline,
		provider: flagProvider,
	})
}

func requireCreator() error {
	if strings.TrimSpace(flagCreator) == "" {
		return fmt.Errorf("--creator (-c) is required")
	}
	return nil
}

// progressCallback wires the bar renderer unless logs or JSON own the
// terminal. The returned finish func must be called after the run.
func progressCallback() (progress.Callback, func()) {
	if flagVerbose || flagJSON {
		return nil, func() {}
	}
	r := progress.NewBarRenderer(os.Stderr)
	return r.Handle, r.Finish
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := requireCreator(); err != nil {
		return err
	}
	a, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(cmd.Context()))

	cb, finish := progressCallback()
	res, err := a.engine.Generate(cmd.Context(), pipeline.GenerateRequest{
		CreatorID: flagCreator,
		Prompt:    strings.Join(args, " "),
		Progress:  cb,
	})
	finish()
	if err != nil {
		return err
	}
	if flagSave {
		if err := a.saveGenerated(cmd.Context(), flagCreator, res.Draft.Content); err != nil {
			return err
		}
	}
	return emit(cmd.OutOrStdout(), res)
}

func runAdjust(cmd *cobra.Command, args []string) error {
	if err := requireCreator(); err != nil {
		return err
	}
	content, err := readScript(cmd.InOrStdin(), flagFile)
	if err != nil {
		return err
	}
	a, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(cmd.Context()))

	cb, finish := progressCallback()
	res, err := a.engine.Adjust(cmd.Context(), pipeline.AdjustRequest{
		CreatorID: flagCreator,
		ScriptID:  flagScriptID,
		Title:     flagTitle,
		Content:   content,
		Prompt:    strings.Join(args, " "),
		Progress:  cb,
	})
	finish()
	if err != nil {
		return err
	}
	if flagSave {
		if err := a.saveAdjusted(cmd.Context(), flagCreator, flagScriptID, res.Draft.Content); err != nil {
			return err
		}
	}
	return emit(cmd.OutOrStdout(), res)
}

// runScope resolves the target of an adjustment request without calling
// any backend.
func runScope(cmd *cobra.Command, args []string) error {
	content, err := readScript(cmd.InOrStdin(), flagFile)
	if err != nil {
		return err
	}
	scope := adjust.DetectScope(strings.Join(args, " "))
	seg, found := adjust.Resolve(content, scope.Target)
	if scope.Target.Scoped() && !found {
		return &pipeline.ScopeNotFoundError{Target: scope.Target}
	}
	return printScope(cmd.OutOrStdout(), scope, seg, found)
}

func runTrainStyle(cmd *cobra.Command, args []string) error {
	if err := requireCreator(); err != nil {
		return err
	}
	a, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(cmd.Context()))
	if a.style == nil {
		return fmt.Errorf("style training needs the script store (check AWS_REGION and DYNAMODB_TABLE)")
	}
	p, err := a.style.Rebuild(cmd.Context(), flagCreator)
	if err != nil {
		return err
	}
	return printProfile(cmd.OutOrStdout(), p, style.BuildContext(p))
}

func runFlag(cmd *cobra.Command, args []string) error {
	a, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(cmd.Context()))
	if a.scripts == nil {
		return fmt.Errorf("flags live in the script store (check AWS_REGION and DYNAMODB_TABLE)")
	}

	name := args[0]
	if len(args) == 2 {
		var enabled bool
		switch strings.ToLower(args[1]) {
		case "on", "true", "1":
			enabled = true
		case "off", "false", "0":
		default:
			return fmt.Errorf("invalid flag value %q: must be on or off", args[1])
		}
		if err := a.scripts.SetFlag(cmd.Context(), name, enabled); err != nil {
			return err
		}
	}
	enabled, found, err := a.scripts.LookupFlag(cmd.Context(), name)
	if err != nil {
		return err
	}
	state := "off"
	if enabled {
		state = "on"
	}
	if !found {
		state = "unset"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, state)
	return nil
}

func readScript(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}

func (a *app) saveGenerated(ctx context.Context, creatorID, content string) error {
	if a.scripts == nil {
		return fmt.Errorf("--save needs the script store")
	}
	baseID, err := store.NewID()
	if err != nil {
		return err
	}
	if err := a.scripts.SaveBase(ctx, creatorID, baseID, content); err != nil {
		return err
	}
	id, err := store.NewID()
	if err != nil {
		return err
	}
	if err := a.scripts.SaveScript(ctx, style.ScriptEntry{
		ID:           id,
		CreatorID:    creatorID,
		Source:       style.SourceAI,
		Content:      content,
		BaseScriptID: baseID,
		UpdatedAt:    time.Now(),
	}); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "script saved", "creator_id", creatorID, "script_id", id, "base_id", baseID)
	return nil
}

func (a *app) saveAdjusted(ctx context.Context, creatorID, scriptID, content string) error {
	if a.scripts == nil {
		return fmt.Errorf("--save needs the script store")
	}
	if scriptID == "" {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		scriptID = id
	}
	if err := a.scripts.SaveScript(ctx, style.ScriptEntry{
		ID:        scriptID,
		CreatorID: creatorID,
		Source:    style.SourceAI,
		Content:   content,
		UpdatedAt: time.Now(),
	}); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "script saved", "creator_id", creatorID, "script_id", scriptID)
	return nil
}
