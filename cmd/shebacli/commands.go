package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"shebacred/internal/credential/models"
	credstore "shebacred/internal/credential/store"
	"shebacred/internal/extraction"
	"shebacred/internal/extraction/dates"
	jwttoken "shebacred/internal/jwt_token"
	"shebacred/internal/platform/config"
	"shebacred/internal/verification/matcher"
	verificationmodels "shebacred/internal/verification/models"
	id "shebacred/pkg/domain"
)

const (
	registryFlagName  = "registry"
	registryFlagUsage = "Path to a JSON array of registry records: [{\"fields\":{...},\"status\":\"ACTIVE\"}]"

	principalFlagName = "principal"
	issuerFlagName    = "issuer"
	ttlFlagName       = "ttl"
)

// readInput reads the file named by args[0], or stdin when no argument or
// "-" is given.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "fingerprint [fields.json]",
		Short:        "Print the canonical fingerprint of a JSON object of fields",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(raw, &obj); err != nil {
				return fmt.Errorf("input must be a JSON object: %w", err)
			}
			fields, err := models.FieldsFromJSON(obj)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), fields.Fingerprint())
			return err
		},
	}
}

type extractOutput struct {
	Fields         models.Fields     `json:"fields"`
	Provenance     map[string]string `json:"provenance"`
	DateNormalized *bool             `json:"date_normalized,omitempty"`
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "extract [text-file]",
		Short:        "Extract structured fields from raw certificate text",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			res, err := extraction.New().Extract(string(raw))
			if err != nil {
				return err
			}
			out := extractOutput{Fields: res.Fields, Provenance: make(map[string]string, len(res.Provenance))}
			for k, tier := range res.Provenance {
				out.Provenance[k] = tier.String()
			}
			if _, ok := res.Fields[models.KeyIssuedDate]; ok {
				normalized := res.DateNormalized
				out.DateNormalized = &normalized
			}
			return writeJSON(cmd, out)
		},
	}
}

func normalizeDateCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "normalize-date <value>",
		Short:        "Normalize a date expression to YYYY-MM-DD",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, ok := dates.Normalize(args[0])
			if !ok {
				return fmt.Errorf("%q is not a date", args[0])
			}
			if !res.Normalized {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: kept raw value, no calendar date recognised")
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), res.Value)
			return err
		},
	}
}

type registryRecord struct {
	Fields map[string]json.RawMessage `json:"fields"`
	Status string                     `json:"status"`
}

type verifyOutput struct {
	verificationmodels.VerdictResponse
	Extracted models.Fields `json:"extracted,omitempty"`
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "verify [text-file]",
		Short:        "Match raw certificate text against a local registry file",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			registryPath, err := cmd.Flags().GetString(registryFlagName)
			if err != nil {
				return err
			}
			store, err := loadRegistry(cmd.Context(), registryPath)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			res, err := matcher.New(store).Match(cmd.Context(), id.NewDocumentID(), string(raw))
			if err != nil {
				return err
			}
			out := verifyOutput{VerdictResponse: res.Verdict.Response()}
			if res.Extraction != nil {
				out.Extracted = res.Extraction.Fields
			}
			return writeJSON(cmd, out)
		},
	}
	cmd.Flags().String(registryFlagName, "", registryFlagUsage)
	_ = cmd.MarkFlagRequired(registryFlagName)
	return cmd
}

func loadRegistry(ctx context.Context, path string) (*credstore.InMemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []registryRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("registry must be a JSON array: %w", err)
	}

	store := credstore.NewInMemoryStore()
	issuer := id.NewIssuerID()
	now := time.Now()
	for i, rec := range records {
		fields, err := models.FieldsFromJSON(rec.Fields)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		cred, err := models.NewTrustedCredential(issuer, fields, now)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if rec.Status != "" {
			status, err := models.ParseStatus(rec.Status)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			if cred, err = cred.WithStatus(status, now); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
		}
		if err := store.Save(ctx, cred); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return store, nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Mint a bearer token signed with JWT_SIGNING_KEY",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			principal := id.NewPrincipalID()
			if raw, _ := cmd.Flags().GetString(principalFlagName); raw != "" {
				if principal, err = id.ParsePrincipalID(raw); err != nil {
					return err
				}
			}
			var issuer id.IssuerID
			if raw, _ := cmd.Flags().GetString(issuerFlagName); raw != "" {
				if issuer, err = id.ParseIssuerID(raw); err != nil {
					return err
				}
			}
			ttl, err := cmd.Flags().GetDuration(ttlFlagName)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				return errors.New("ttl must be positive")
			}

			token, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer).GenerateAccessToken(principal, issuer, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().String(principalFlagName, "", "Principal UUID (random when empty)")
	cmd.Flags().String(issuerFlagName, "", "Issuer UUID granting issuer scope (holder token when empty)")
	cmd.Flags().Duration(ttlFlagName, time.Hour, "Token lifetime")
	return cmd
}
