package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	jvs3 "jarvault/pkg/s3"
	"jarvault/pkg/signing"
	"jarvault/services/packer"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jarctl",
		Short:         "Utility for managing jarvault caches and jar packs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newPacksCommand())
	cmd.AddCommand(newPrefetchCommand())
	cmd.AddCommand(newVersionsCommand())
	return cmd
}

func newPacksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packs",
		Short: "Jar pack build and import operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newPacksBuildCommand())
	cmd.AddCommand(newPacksImportCommand())
	return cmd
}

func newPacksBuildCommand() *cobra.Command {
	var (
		jarsDir string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Create a signed jar pack from a directory laid out as cache keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			signer, err := signing.NewFromEnv()
			if err != nil {
				return err
			}
			_, err = packer.Build(ctx, packer.BuildConfig{
				JarsDir: jarsDir,
				Output:  output,
				Signer:  signer,
				Stdout:  os.Stdout,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&jarsDir, "jars-dir", "", "Directory containing jars to include")
	cmd.Flags().StringVar(&output, "output", "", "Destination pack file (tar.zst)")
	_ = cmd.MarkFlagRequired("jars-dir")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newPacksImportCommand() *cobra.Command {
	var (
		packFile string
		bucket   string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Verify a signed jar pack and upload its jars into the cache bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			signer, err := signing.NewFromEnv()
			if err != nil {
				return err
			}
			s3Client, err := jvs3.NewClientFromEnv()
			if err != nil {
				return fmt.Errorf("s3 client: %w", err)
			}
			if bucket == "" {
				bucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
			}
			if bucket == "" {
				return errors.New("--bucket or S3_BUCKET is required")
			}
			_, err = packer.Import(ctx, packer.ImportConfig{
				PackPath: packFile,
				Bucket:   bucket,
				Store:    s3Client,
				Signer:   signer,
				Stdout:   os.Stdout,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&packFile, "file", "", "Path to the pack tar.zst")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Cache bucket (defaults to S3_BUCKET)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newPrefetchCommand() *cobra.Command {
	var (
		apiBaseURL string
		platform   string
		version    string
		build      string
	)

	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Warm the cache for a jar through a running jarvault API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			query := url.Values{}
			query.Set("platform", platform)
			query.Set("version", version)
			if build != "" {
				query.Set("build", build)
			}
			endpoint := strings.TrimRight(apiBaseURL, "/") + "/v1/jar/download?" + query.Encode()

			body, err := getJSON(ctx, endpoint)
			if err != nil {
				return err
			}

			key, _ := body["s3_key"].(string)
			fmt.Fprintf(os.Stdout, "cached %s\n", key)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiBaseURL, "api", "", "Base URL of the jarvault API")
	cmd.Flags().StringVar(&platform, "platform", "", "Platform (vanilla, paper, forge, neoforge)")
	cmd.Flags().StringVar(&version, "version", "", "Minecraft version")
	cmd.Flags().StringVar(&build, "build", "", "Paper build number (defaults to latest)")
	_ = cmd.MarkFlagRequired("api")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func newVersionsCommand() *cobra.Command {
	var (
		apiBaseURL string
		platform   string
	)

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List upstream published versions for a platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			endpoint := strings.TrimRight(apiBaseURL, "/") + "/v1/versions/upstream/" + url.PathEscape(platform)

			body, err := getJSON(ctx, endpoint)
			if err != nil {
				return err
			}

			versions, _ := body["versions"].([]any)
			for _, v := range versions {
				fmt.Fprintln(os.Stdout, v)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiBaseURL, "api", "", "Base URL of the jarvault API")
	cmd.Flags().StringVar(&platform, "platform", "", "Platform (vanilla, paper, forge, neoforge)")
	_ = cmd.MarkFlagRequired("api")
	_ = cmd.MarkFlagRequired("platform")
	return cmd
}

func getJSON(ctx context.Context, endpoint string) (map[string]any, error) {
	client := &http.Client{Timeout: 10 * time.Minute}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body, nil
}
