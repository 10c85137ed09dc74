package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"faceswap/internal/apiclient"
	"faceswap/internal/domain"
	"faceswap/internal/jobs"
)

// WaitOptions holds the flags shared by commands that can block on a job.
type WaitOptions struct {
	Wait     bool
	MaxWait  time.Duration
	Interval time.Duration
	Out      string
}

func (w *WaitOptions) bind(cmd *cobra.Command, defaultWait bool, maxWait time.Duration) {
	cmd.Flags().BoolVar(&w.Wait, "wait", defaultWait, "wait for the job to finish")
	cmd.Flags().DurationVar(&w.MaxWait, "max-wait", maxWait, "give up waiting after this long")
	cmd.Flags().DurationVar(&w.Interval, "interval", 2*time.Second, "status poll interval")
	cmd.Flags().StringVarP(&w.Out, "out", "o", "", "write the result to this file")
}

// NewSubmitCommand creates `swapctl submit <provider>`.
func NewSubmitCommand(root *RootOptions) *cobra.Command {
	var (
		sources   []string
		reference string
		prompt    string
		wait      WaitOptions
	)
	cmd := &cobra.Command{
		Use:   "submit <provider>",
		Short: "Edit images with one provider (qwen, gemini or faceswap)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(sources) == 0 {
				return &ExitError{Code: ExitCommandError, Message: "--source is required"}
			}
			req := apiclient.JobRequest{Prompt: prompt}
			for i, path := range sources {
				encoded, err := readImage(path)
				if err != nil {
					return err
				}
				if i == 0 {
					req.SourceImage = encoded
				} else {
					req.SourceImages = append(req.SourceImages, encoded)
				}
			}
			ref, err := readImage(reference)
			if err != nil {
				return err
			}
			req.ReferenceImage = ref

			client, err := root.client()
			if err != nil {
				return err
			}
			id, err := client.SubmitJob(cmd.Context(), args[0], req)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "submit", Err: err}
			}
			return afterSubmit(cmd, root, client, id, wait)
		},
	}
	cmd.Flags().StringArrayVarP(&sources, "source", "s", nil, "source image file (repeatable, at most 2)")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "reference face image file")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "edit instruction")
	wait.bind(cmd, false, 5*time.Minute)
	return cmd
}

// NewPipelineCommand creates `swapctl pipeline`.
func NewPipelineCommand(root *RootOptions) *cobra.Command {
	var (
		req       apiclient.PipelineRequest
		source    string
		reference string
		wait      WaitOptions
	)
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the face-swap pipeline with an optional clothing change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				return &ExitError{Code: ExitCommandError, Message: "--source is required"}
			}
			var err error
			if req.SourceImage, err = readImage(source); err != nil {
				return err
			}
			if req.ReferenceImage, err = readImage(reference); err != nil {
				return err
			}
			client, err := root.client()
			if err != nil {
				return err
			}
			id, err := client.SubmitPipeline(cmd.Context(), req)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "submit pipeline", Err: err}
			}
			return afterSubmit(cmd, root, client, id, wait)
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "source image file")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "reference face image file")
	cmd.Flags().StringVarP(&req.Prompt, "prompt", "p", "", "edit instruction")
	cmd.Flags().StringVar(&req.ClothingPrompt, "clothing", "", "clothing change instruction")
	cmd.Flags().StringVar(&req.Provider, "provider", "", "force the primary provider")
	wait.bind(cmd, false, 5*time.Minute)
	return cmd
}

// NewVideoCommand creates `swapctl video`.
func NewVideoCommand(root *RootOptions) *cobra.Command {
	var (
		req    apiclient.VideoRequest
		source string
		wait   WaitOptions
	)
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Animate an image into a short video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				return &ExitError{Code: ExitCommandError, Message: "--source is required"}
			}
			var err error
			if req.SourceImage, err = readImage(source); err != nil {
				return err
			}
			client, err := root.client()
			if err != nil {
				return err
			}
			id, err := client.SubmitVideo(cmd.Context(), req)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "submit video", Err: err}
			}
			return afterSubmit(cmd, root, client, id, wait)
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "source image file")
	cmd.Flags().StringVarP(&req.Prompt, "prompt", "p", "", "motion description")
	cmd.Flags().StringVar(&req.AspectRatio, "aspect", "", "aspect ratio (16:9 or 9:16)")
	wait.bind(cmd, false, 15*time.Minute)
	return cmd
}

// NewStatusCommand creates `swapctl status <task-id>`.
func NewStatusCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show a job's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.client()
			if err != nil {
				return err
			}
			st, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "status", Err: err}
			}
			return printResult(cmd.OutOrStdout(), root.Format, st, func(w io.Writer) {
				fmt.Fprintf(w, "%s\t%s", st.TaskID, st.Status)
				if st.Expired {
					fmt.Fprint(w, " (expired)")
				}
				if st.Error != "" {
					fmt.Fprintf(w, "\t%s", st.Error)
				}
				fmt.Fprintln(w)
			})
		},
	}
}

// NewWaitCommand creates `swapctl wait <task-id>`.
func NewWaitCommand(root *RootOptions) *cobra.Command {
	var wait WaitOptions
	cmd := &cobra.Command{
		Use:   "wait <task-id>",
		Short: "Block until a job completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.client()
			if err != nil {
				return err
			}
			return waitFor(cmd, root, client, args[0], wait)
		},
	}
	wait.bind(cmd, true, 5*time.Minute)
	return cmd
}

func afterSubmit(cmd *cobra.Command, root *RootOptions, client *apiclient.Client, id string, wait WaitOptions) error {
	if !wait.Wait {
		return printResult(cmd.OutOrStdout(), root.Format, map[string]string{"taskId": id, "status": "started"}, func(w io.Writer) {
			fmt.Fprintln(w, id)
		})
	}
	return waitFor(cmd, root, client, id, wait)
}

func waitFor(cmd *cobra.Command, root *RootOptions, client *apiclient.Client, id string, wait WaitOptions) error {
	job, err := jobs.NewPoller(client, nil).WaitFor(cmd.Context(), id, wait.MaxWait, wait.Interval)
	if err != nil {
		var failed *domain.JobFailedError
		var timeout *domain.TimeoutError
		switch {
		case errors.As(err, &failed), errors.As(err, &timeout), errors.Is(err, domain.ErrNotFound):
			return &ExitError{Code: ExitFailure, Message: "job " + id, Err: err}
		}
		return &ExitError{Code: ExitCommandError, Message: "wait", Err: err}
	}
	if err := writeArtifact(wait.Out, job.Result); err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), root.Format, job, func(w io.Writer) {
		fmt.Fprintf(w, "%s\tcompleted\t%s", id, job.Method)
		if wait.Out != "" {
			fmt.Fprintf(w, "\t%s", wait.Out)
		}
		fmt.Fprintln(w)
	})
}
