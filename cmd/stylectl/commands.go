package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"stylegen/pkg/client"
)

const defaultServer = "http://localhost:8080"

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	server  string
	token   string
	output  string
	profile string
}

func (g *globals) client() (*client.Client, error) {
	p, err := loadProfile(g.profile)
	if err != nil {
		return nil, err
	}
	server := firstNonEmpty(g.server, os.Getenv("STYLEGEN_URL"), p.Server, defaultServer)
	token := firstNonEmpty(g.token, os.Getenv("STYLEGEN_TOKEN"), p.Token)
	return client.New(server, token), nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:   "stylectl",
		Short: "Start and follow stylegen image generation jobs",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			_ = godotenv.Load()
			if g.profile == "" {
				path, err := profilePath()
				if err != nil {
					return err
				}
				g.profile = path
			}
			return validFormat(g.output)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&g.server, "server", "", "API base URL (default $STYLEGEN_URL or the saved profile)")
	cmd.PersistentFlags().StringVar(&g.token, "token", "", "bearer token (default $STYLEGEN_TOKEN or the saved profile)")
	cmd.PersistentFlags().StringVarP(&g.output, "output", "o", formatText, "output format: text, json, yaml")
	cmd.PersistentFlags().StringVar(&g.profile, "profile", "", "profile file written by login")

	cmd.AddCommand(
		newLoginCmd(g),
		newGenerateCmd(g),
		newRegenerateCmd(g),
		newJobsCmd(g),
		newJobCmd(g),
		newImagesCmd(g),
		newWatchCmd(g),
		newCancelCmd(g),
		newZipCmd(g),
	)
	return cmd
}

func newLoginCmd(g *globals) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the token to the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("STYLEGEN_PASSWORD")
			}
			token, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := saveProfile(g.profile, profile{Server: c.BaseURL, Email: email, Token: token}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s, profile saved to %s\n", email, g.profile)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default $STYLEGEN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

type settingsFlags struct {
	model, quality, size     string
	variations               int
	transparency, renderText bool
}

func (s *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.model, "model", "", "image model")
	cmd.Flags().StringVar(&s.quality, "quality", "", "quality tier")
	cmd.Flags().StringVar(&s.size, "size", "", "image size, e.g. 1024x1024")
	cmd.Flags().IntVar(&s.variations, "variations", 1, "images per concept")
	cmd.Flags().BoolVar(&s.transparency, "transparent", false, "request a transparent background")
	cmd.Flags().BoolVar(&s.renderText, "render-text", false, "allow text in the image")
}

func (s *settingsFlags) settings() client.Settings {
	return client.Settings{
		Model:        s.model,
		Quality:      s.quality,
		Size:         s.size,
		Variations:   s.variations,
		Transparency: s.transparency,
		RenderText:   s.renderText,
	}
}

func newGenerateCmd(g *globals) *cobra.Command {
	var (
		req          client.GenerateRequest
		concepts     []string
		conceptsFile string
		settings     settingsFlags
		wait         bool
		interval     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Start a batch job from visual concepts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if conceptsFile != "" {
				fromFile, err := readConcepts(cmd.InOrStdin(), conceptsFile)
				if err != nil {
					return err
				}
				concepts = append(concepts, fromFile...)
			}
			if len(concepts) == 0 {
				return errors.New("at least one --concept or --concepts-file entry is required")
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			req.Concepts = concepts
			req.Settings = settings.settings()
			job, err := c.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return g.finish(cmd, c, job, wait, interval)
		},
	}
	cmd.Flags().StringVar(&req.JobName, "name", "", "job name")
	cmd.Flags().StringVar(&req.SessionID, "session", "", "project session id")
	cmd.Flags().StringVar(&req.StyleID, "style", "", "saved style id")
	cmd.Flags().StringVar(&req.StylePrompt, "style-prompt", "", "inline style description")
	cmd.Flags().StringArrayVarP(&concepts, "concept", "c", nil, "visual concept (repeatable)")
	cmd.Flags().StringVarP(&conceptsFile, "concepts-file", "f", "", "file with one concept per line, - for stdin")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "follow the job until it finishes")
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "poll interval with --wait")
	settings.register(cmd)
	return cmd
}

func newRegenerateCmd(g *globals) *cobra.Command {
	var (
		req         client.RegenerateRequest
		settings    settingsFlags
		noReference bool
		wait        bool
		interval    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "regenerate IMAGE_ID",
		Short: "Create a new image from an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			req.SourceImageID = args[0]
			if cmd.Flags().Changed("model") || cmd.Flags().Changed("quality") || cmd.Flags().Changed("size") ||
				cmd.Flags().Changed("variations") || cmd.Flags().Changed("transparent") || cmd.Flags().Changed("render-text") {
				s := settings.settings()
				req.Settings = &s
			}
			if noReference {
				useRef := false
				req.UseOriginalAsReference = &useRef
			}
			job, err := c.Regenerate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return g.finish(cmd, c, job, wait, interval)
		},
	}
	cmd.Flags().StringVar(&req.JobName, "name", "", "job name")
	cmd.Flags().StringVarP(&req.Instruction, "instruction", "i", "", "what to change")
	cmd.Flags().BoolVar(&noReference, "no-reference", false, "do not send the original image as a reference")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "follow the job until it finishes")
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "poll interval with --wait")
	settings.register(cmd)
	return cmd
}

func newJobsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			jobs, err := c.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), g.output, jobs, func(w io.Writer) error { return writeJobs(w, jobs) })
		},
	}
}

func newJobCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "job JOB_ID",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			job, err := c.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), g.output, job, func(w io.Writer) error { return writeJobs(w, []client.Job{*job}) })
		},
	}
}

func newImagesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "images JOB_ID",
		Short: "List the images of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			images, err := c.Images(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), g.output, images, func(w io.Writer) error { return writeImages(w, images) })
		},
	}
}

func newWatchCmd(g *globals) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch JOB_ID",
		Short: "Follow a job until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			return g.follow(cmd, c, args[0], interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "poll interval")
	return cmd
}

func newCancelCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			if err := c.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for %s\n", args[0])
			return nil
		},
	}
}

func newZipCmd(g *globals) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "zip JOB_ID",
		Short: "Download the completed images of a job as a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			c, err := g.client()
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0] + ".zip"
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					_ = os.Remove(out)
				}
			}()
			if err := c.DownloadZip(cmd.Context(), args[0], f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default JOB_ID.zip)")
	return cmd
}

// finish prints a freshly started job, or follows it when wait is set.
func (g *globals) finish(cmd *cobra.Command, c *client.Client, job *client.Job, wait bool, interval time.Duration) error {
	if !wait {
		return render(cmd.OutOrStdout(), g.output, job, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "Started job %s (%d images)\n", job.ID, job.Total)
			return err
		})
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Started job %s (%d images)\n", job.ID, job.Total)
	return g.follow(cmd, c, job.ID, interval)
}

func (g *globals) follow(cmd *cobra.Command, c *client.Client, jobID string, interval time.Duration) error {
	var (
		final    *client.Job
		images   []client.Image
		pollErr  error
		lastLine string
	)
	client.Poll(cmd.Context(), c, jobID, client.Callbacks{
		OnProgress: func(job client.Job, _ []client.Image) {
			if line := progressLine(job); line != lastLine {
				fmt.Fprintln(cmd.ErrOrStderr(), line)
				lastLine = line
			}
		},
		OnComplete: func(job client.Job, imgs []client.Image) {
			final, images = &job, imgs
		},
		OnError: func(err error) { pollErr = err },
	}, interval)

	if pollErr != nil {
		return pollErr
	}
	if final == nil {
		return cmd.Context().Err()
	}
	result := struct {
		Job    client.Job     `json:"job" yaml:"job"`
		Images []client.Image `json:"images" yaml:"images"`
	}{*final, images}
	if err := render(cmd.OutOrStdout(), g.output, result, func(w io.Writer) error {
		fmt.Fprintln(w, progressLine(*final))
		return writeImages(w, images)
	}); err != nil {
		return err
	}
	if final.Status == "failed" {
		return fmt.Errorf("job %s failed: %s", final.ID, final.ErrorMessage)
	}
	return nil
}

// readConcepts reads one concept per non-blank line; # starts a comment.
func readConcepts(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
