package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"fedsync/contexts/federation/replication-service/domain/entities"
	"fedsync/contexts/federation/replication-service/domain/services"
	federationv1 "fedsync/contracts/gen/federation/v1"

	"github.com/spf13/cobra"
)

type signOptions struct {
	Domain   string
	Method   string
	Path     string
	BodyFile string
	KeyID    string
	Secret   string
}

// newSignCommand prints the federation headers for a request, for debugging
// peers with curl.
func newSignCommand() *cobra.Command {
	var opts signOptions

	cmd := &cobra.Command{
		Use:     "sign",
		Short:   "Print federation signature headers for a request",
		Args:    cobra.NoArgs,
		Example: `  fedctl sign --domain local.example --path /federation/v1/events --body-file event.json --key-id k1 --secret s3cret`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := readBody(opts.BodyFile)
			if err != nil {
				return err
			}
			signed := services.SignRequest(services.SignedRequest{
				Domain: entities.NormalizeDomain(opts.Domain),
				Method: opts.Method,
				Path:   opts.Path,
				Body:   string(body),
			}, entities.PeerKey{ID: opts.KeyID, Secret: opts.Secret}, time.Now())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", federationv1.HeaderDomain, signed.Domain)
			fmt.Fprintf(out, "%s: %s\n", federationv1.HeaderKeyID, signed.KeyID)
			fmt.Fprintf(out, "%s: %s\n", federationv1.HeaderTimestamp, signed.Timestamp)
			fmt.Fprintf(out, "%s: %s\n", federationv1.HeaderSignature, signed.Signature)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Domain, "domain", "", "Signing instance domain")
	cmd.Flags().StringVar(&opts.Method, "method", "POST", "HTTP method")
	cmd.Flags().StringVar(&opts.Path, "path", federationv1.EventsPath, "Escaped request path, without query")
	cmd.Flags().StringVar(&opts.BodyFile, "body-file", "", "File holding the exact request body (- for stdin)")
	cmd.Flags().StringVar(&opts.KeyID, "key-id", "", "Shared key id")
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "Shared key secret")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("key-id")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func readBody(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, nil
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(path)
	}
}
