package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/metadata"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/placemark"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/store"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
)

type previewOptions struct {
	storeQuery string
	storesFile string
	format     string
}

// storeFileEntry is one line of a --stores directory file.
type storeFileEntry struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"displayName"`
}

type previewReport struct {
	File   string         `json:"file" yaml:"file"`
	Store  previewStore   `json:"store" yaml:"store"`
	Drafts []previewDraft `json:"drafts" yaml:"drafts"`
}

type previewStore struct {
	Query       string `json:"query,omitempty" yaml:"query,omitempty"`
	Tier        string `json:"tier" yaml:"tier"`
	StoreID     string `json:"storeId,omitempty" yaml:"storeId,omitempty"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
}

type previewDraft struct {
	Index                    int                    `json:"index" yaml:"index"`
	SourceName               string                 `json:"sourceName,omitempty" yaml:"sourceName,omitempty"`
	ZoneName                 string                 `json:"zoneName" yaml:"zoneName"`
	BaseDeliveryFee          float64                `json:"baseDeliveryFee" yaml:"baseDeliveryFee"`
	PerMileFee               float64                `json:"perMileFee" yaml:"perMileFee"`
	MinOrderAmount           float64                `json:"minOrderAmount" yaml:"minOrderAmount"`
	EstimatedPreparationTime float64                `json:"estimatedPreparationTime" yaml:"estimatedPreparationTime"`
	IsRestricted             bool                   `json:"isRestricted" yaml:"isRestricted"`
	StoreID                  string                 `json:"storeId,omitempty" yaml:"storeId,omitempty"`
	Coordinates              []placemark.Coordinate `json:"coordinates" yaml:"coordinates"`
	Strategy                 string                 `json:"strategy" yaml:"strategy"`
	Submittable              bool                   `json:"submittable" yaml:"submittable"`
	Blocking                 string                 `json:"blocking,omitempty" yaml:"blocking,omitempty"`
	Notes                    []string               `json:"notes,omitempty" yaml:"notes,omitempty"`
	Warnings                 []string               `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func previewCmd() *cobra.Command {
	var opts previewOptions

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Parse a KML document and print the drafts it would stage",
		Long: `Preview runs extraction, metadata canonicalization and assembly on a local
document without staging or submitting anything. Store names given with --store
are resolved against the directory listed in --stores.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var entries []store.Entry
			if opts.storesFile != "" {
				if entries, err = loadStores(opts.storesFile); err != nil {
					return err
				}
			}
			report, err := buildPreview(args[0], doc, opts.storeQuery, entries)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, opts.format)
		},
	}

	cmd.Flags().StringVar(&opts.storeQuery, "store", "", "Store name to resolve for every draft")
	cmd.Flags().StringVar(&opts.storesFile, "stores", "", "YAML file listing the store directory (id, displayName)")
	cmd.Flags().StringVarP(&opts.format, "format", "o", "yaml", "Output format (yaml, json)")

	return cmd
}

func loadStores(path string) ([]store.Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read store directory: %w", err)
	}
	var listed []storeFileEntry
	if err := yaml.Unmarshal(raw, &listed); err != nil {
		return nil, fmt.Errorf("parse store directory: %w", err)
	}
	entries := make([]store.Entry, 0, len(listed))
	for _, e := range listed {
		entries = append(entries, store.Entry{ID: e.ID, DisplayName: e.DisplayName})
	}
	return entries, nil
}

func buildPreview(file string, doc []byte, storeQuery string, entries []store.Entry) (*previewReport, error) {
	resolver := store.NewResolver(entries)
	entry, tier := resolver.Resolve(storeQuery)

	canon := metadata.NewCanonicalizer(metadata.DefaultSynonyms())
	assembled, err := zone.AssembleDocument(doc, entry.ID, canon, uuid.Nil)
	if err != nil {
		return nil, err
	}

	report := &previewReport{
		File: file,
		Store: previewStore{
			Query:       storeQuery,
			Tier:        string(tier),
			StoreID:     entry.ID,
			DisplayName: entry.DisplayName,
		},
		Drafts: make([]previewDraft, 0, len(assembled)),
	}
	for _, a := range assembled {
		f := a.Draft.Fields()
		src := a.Draft.Source()
		pd := previewDraft{
			Index:                    src.Index,
			SourceName:               src.Name,
			ZoneName:                 f.ZoneName,
			BaseDeliveryFee:          f.BaseDeliveryFee,
			PerMileFee:               f.PerMileFee,
			MinOrderAmount:           f.MinOrderAmount,
			EstimatedPreparationTime: f.EstimatedPreparationTime,
			IsRestricted:             f.IsRestricted,
			StoreID:                  f.StoreID,
			Coordinates:              f.Coordinates,
			Strategy:                 string(a.Attributes.Strategy),
			Notes:                    src.Notes,
			Warnings:                 src.Warnings,
		}
		if err := a.Draft.Validate(); err != nil {
			pd.Blocking = err.Error()
		} else {
			pd.Submittable = true
		}
		report.Drafts = append(report.Drafts, pd)
	}
	return report, nil
}

func writeReport(w io.Writer, report *previewReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.New("unknown format " + format + " (want yaml or json)")
	}
}
