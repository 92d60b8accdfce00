package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dyuri/twmap/internal/binary"
	"github.com/dyuri/twmap/internal/datafile"
	"github.com/dyuri/twmap/internal/model"
	"github.com/dyuri/twmap/pkg/twmap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile string
	cfg     = viper.New()
	log     = logrus.New()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "twmap",
	Short: "Inspect tile-based game map files",
	Long: `twmap decodes map files: a table of typed items plus a pool of
compressed data blobs holding images, tile grids and quads.

It can print map metadata, dump groups and layers as text, export
embedded images, and check that items re-encode to their stored words.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ./twmap.yaml or ~/.config/twmap/twmap.yaml)")
	flags.String("mapres", "", "Directory of external images to validate against")
	flags.Int64("max-blob-size", datafile.DefaultMaxBlobSize, "Maximum decompressed size of one data blob")
	flags.Int("cache-size", datafile.DefaultCacheSize, "Decompressed blobs kept in memory")
	flags.Bool("strict", false, "Fail on the first item that cannot be decoded")
	flags.String("log-level", "warning", "Log level: debug, info, warning, error")
	flags.String("log-format", "text", "Log format: text, json")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(imagesCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig merges flags, TWMAP_* environment variables (also read from a
// local .env file) and the config file.
func initConfig(cmd *cobra.Command) error {
	_ = godotenv.Load(".env")
	if err := cfg.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	cfg.SetEnvPrefix("twmap")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	if cfgFile != "" {
		cfg.SetConfigFile(cfgFile)
	} else {
		cfg.SetConfigName("twmap")
		cfg.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			cfg.AddConfigPath(filepath.Join(home, ".config", "twmap"))
		}
	}
	if err := cfg.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level, err := logrus.ParseLevel(cfg.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if cfg.GetString("log-format") == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	binary.SetLogger(log)
	return nil
}

func options() []twmap.Option {
	return []twmap.Option{
		twmap.WithMaxBlobSize(cfg.GetInt64("max-blob-size")),
		twmap.WithCacheSize(cfg.GetInt("cache-size")),
		twmap.WithMapres(cfg.GetString("mapres")),
		twmap.WithStrict(cfg.GetBool("strict")),
		twmap.WithLogger(log),
	}
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info <input.map>",
	Short: "Display map information",
	Long: `Display metadata and statistics about a map.

Shows the map info fields and counts of images, envelopes, groups and
layers, followed by items that failed to decode.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	m, err := twmap.Open(args[0], options()...)
	if err != nil {
		return fmt.Errorf("open map: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\n", filepath.Base(args[0]))
	fmt.Fprintf(out, "Version: %d\n", m.Version)
	if m.Info != nil {
		fmt.Fprintf(out, "Author: %s\n", orDash(m.Info.Author))
		fmt.Fprintf(out, "Map version: %s\n", orDash(m.Info.MapVersion))
		fmt.Fprintf(out, "Credits: %s\n", orDash(m.Info.Credits))
		fmt.Fprintf(out, "License: %s\n", orDash(m.Info.License))
		fmt.Fprintf(out, "Settings: %d\n", len(m.Info.Settings))
	}

	external := 0
	for _, im := range m.Images {
		if im != nil && im.External {
			external++
		}
	}
	kinds := map[model.LayerKind]int{}
	quads := 0
	for _, l := range m.Layers {
		switch {
		case l == nil:
		case l.Tiles != nil:
			kinds[l.Tiles.Kind]++
		case l.Quads != nil:
			quads++
		}
	}

	fmt.Fprintf(out, "\nImages: %d (%d external)\n", len(m.Images), external)
	fmt.Fprintf(out, "Envelopes: %d (%d points)\n", len(m.Envelopes), len(m.Envpoints))
	fmt.Fprintf(out, "Groups: %d\n", len(m.Groups))
	fmt.Fprintf(out, "Layers: %d\n", len(m.Layers))
	for _, k := range []model.LayerKind{model.KindNormal, model.KindGame, model.KindTele, model.KindSpeedup, model.KindReserved} {
		if kinds[k] > 0 {
			fmt.Fprintf(out, "  %s tile layers: %d\n", k, kinds[k])
		}
	}
	if quads > 0 {
		fmt.Fprintf(out, "  quad layers: %d\n", quads)
	}
	if len(m.Unrecognized) > 0 {
		fmt.Fprintf(out, "Unrecognized items: %d\n", len(m.Unrecognized))
	}

	if len(m.Failures) > 0 {
		fmt.Fprintf(out, "\nFailures (%d):\n", len(m.Failures))
		for _, f := range m.Failures {
			fmt.Fprintf(out, "  ✗ %v\n", f)
		}
	}
	if len(m.Advisories) > 0 {
		fmt.Fprintf(out, "\nWarnings (%d):\n", len(m.Advisories))
		for _, a := range m.Advisories {
			fmt.Fprintf(out, "  ⚠ %s\n", a)
		}
	}
	return nil
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <input.map>",
	Short: "Dump a map as text",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	dumpCmd.Flags().Bool("tiles", false, "List every non-empty tile")
}

func runDump(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	tiles, _ := cmd.Flags().GetBool("tiles")

	m, err := twmap.Open(args[0], options()...)
	if err != nil {
		return fmt.Errorf("open map: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return twmap.WriteText(out, m, tiles)
}

// items command
var itemsCmd = &cobra.Command{
	Use:   "items <input.map>",
	Short: "List raw items and check that they re-encode",
	Long: `List the container's items with their type, id and size.

Images, envelopes, groups and layers are re-encoded from the decoded
entity and compared word for word with the stored item.`,
	Args: cobra.ExactArgs(1),
	RunE: runItems,
}

func runItems(cmd *cobra.Command, args []string) error {
	df, m, err := openBoth(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	mismatches := 0
	for i, it := range df.Items {
		status := "-"
		if enc, ok := reencode(m, it, nth(df.Items, i)); ok {
			words, err := binary.Words(it.Data)
			switch {
			case err != nil:
				status = "bad"
			case slices.Equal(words, enc.Data):
				status = "ok"
			default:
				status = "MISMATCH"
				mismatches++
			}
		}
		fmt.Fprintf(out, "%4d %-10s id=%-4d words=%-5d %s\n", i, model.ItemType(it.Type), it.ID, len(it.Data)/4, status)
	}
	if mismatches > 0 {
		return fmt.Errorf("%d item(s) do not re-encode to their stored words", mismatches)
	}
	return nil
}

// images command
var imagesCmd = &cobra.Command{
	Use:   "images <input.map>",
	Short: "Export embedded images as PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runImages,
}

func init() {
	imagesCmd.Flags().StringP("output", "o", "", "Output directory (required)")
	imagesCmd.MarkFlagRequired("output")
}

func runImages(cmd *cobra.Command, args []string) error {
	outputDir, _ := cmd.Flags().GetString("output")

	m, err := twmap.Open(args[0], options()...)
	if err != nil {
		return fmt.Errorf("open map: %w", err)
	}

	written, err := twmap.ExportImages(m, outputDir)
	for _, path := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", path)
	}
	if err != nil {
		return fmt.Errorf("export images: %w", err)
	}
	for _, a := range m.Advisories {
		fmt.Fprintf(cmd.ErrOrStderr(), "  ⚠ %s\n", a)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d image(s) to %s\n", len(written), outputDir)
	return nil
}

// rewrite command
var rewriteCmd = &cobra.Command{
	Use:   "rewrite <input.map>",
	Short: "Write a map back out from its decoded items",
	Long: `Decode a map and write it to a new container.

Images, envelopes, groups and layers are written from their decoded
entities; every other item and all data blobs are copied unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runRewrite,
}

func init() {
	rewriteCmd.Flags().StringP("output", "o", "", "Output file (required)")
	rewriteCmd.MarkFlagRequired("output")
}

func runRewrite(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")

	df, m, err := openBoth(args[0])
	if err != nil {
		return err
	}

	b := datafile.NewBuilder()
	for i := 0; i < df.Pool.Size(); i++ {
		data, err := df.Pool.Fetch(int32(i))
		if err != nil {
			return fmt.Errorf("read blob %d: %w", i, err)
		}
		b.AddData(data)
	}
	for i, it := range df.Items {
		data := it.Data
		if enc, ok := reencode(m, it, nth(df.Items, i)); ok {
			data = enc.Bytes()
		}
		b.AddItem(it.Type, it.ID, data)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()
	if _, err := b.WriteTo(out); err != nil {
		return fmt.Errorf("write map: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Successfully rewrote %s to %s\n", args[0], outputPath)
	return nil
}

// openBoth opens the container and decodes it, keeping both views.
func openBoth(path string) (*datafile.File, *model.Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat input file: %w", err)
	}

	opts := options()
	df, err := twmap.OpenContainer(f, stat.Size(), opts...)
	if err != nil {
		return nil, nil, err
	}
	m, err := twmap.NewItemReader(df, twmap.NewOptions(opts...)).Decode(twmap.Items(df))
	if err != nil {
		return nil, nil, fmt.Errorf("decode map: %w", err)
	}
	return df, m, nil
}

// nth returns how many items of the same type precede items[i].
func nth(items []datafile.Item, i int) int {
	n := 0
	for _, it := range items[:i] {
		if it.Type == items[i].Type {
			n++
		}
	}
	return n
}

// reencode encodes the decoded entity of the k-th item of its type, if the
// type has an encoder and the item decoded.
func reencode(m *model.Map, it datafile.Item, k int) (binary.ItemData, bool) {
	switch model.ItemType(it.Type) {
	case model.ItemImage:
		if k < len(m.Images) && m.Images[k] != nil {
			return binary.EncodeImage(m.Images[k]), true
		}
	case model.ItemEnvelope:
		if k < len(m.Envelopes) && m.Envelopes[k] != nil {
			return binary.EncodeEnvelope(m.Envelopes[k]), true
		}
	case model.ItemGroup:
		if k < len(m.Groups) && m.Groups[k] != nil {
			return binary.EncodeGroup(m.Groups[k]), true
		}
	case model.ItemLayer:
		if k < len(m.Layers) && m.Layers[k] != nil {
			return binary.EncodeLayer(m.Layers[k]), true
		}
	}
	return binary.ItemData{}, false
}

// version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("twmap version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
	},
}
