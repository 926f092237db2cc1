// Package cmd - Kommandozeilen-Interface
//
// Dieses Paket stellt die CLI mit cobra bereit.
//
// Hauptkomponenten:
// - NewCLI: Baut den Root-Command mit allen Subcommands auf
// - ServeHandler: Startet den HTTP-Server
// - RestoreHandler: Restauriert ein Bild von der Kommandozeile
// - InfoHandler: Zeigt die Tensoren des geladenen Modells

package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/priorml/priorformer/convert"
	"github.com/priorml/priorformer/envconfig"
	"github.com/priorml/priorformer/logutil"
	"github.com/priorml/priorformer/ml"
	"github.com/priorml/priorformer/ml/backend/cpu"
	"github.com/priorml/priorformer/model"
	"github.com/priorml/priorformer/model/models/priorformer"
	"github.com/priorml/priorformer/server"
	"github.com/priorml/priorformer/version"
	"github.com/priorml/priorformer/vision"
)

// resolveModelPath nimmt den Flag-Wert oder faellt auf das
// PRIORFORMER_MODELS-Verzeichnis zurueck, wenn dort ein Modell liegt.
// Ohne beides laeuft das Netz mit Konstruktor-Initialisierung.
func resolveModelPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	dir := envconfig.Models()
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err == nil {
		return dir
	}

	return ""
}

// loadModel baut das Modell aus dem Modell-Verzeichnis auf und legt
// optional ein MAE-Checkpoint darueber
func loadModel(modelPath, maePath string) (model.Model, error) {
	b, err := ml.NewBackend(resolveModelPath(modelPath), ml.BackendParams{NumThreads: envconfig.NumThreads()})
	if err != nil {
		return nil, err
	}

	if maePath != "" {
		cb, ok := b.(*cpu.Backend)
		if !ok {
			return nil, fmt.Errorf("mae import requires the cpu backend")
		}
		if err := convert.LoadMAE(cb, maePath); err != nil {
			return nil, fmt.Errorf("mae checkpoint laden: %w", err)
		}
	}

	return model.NewFromBackend(b)
}

// loadPrior liest ein Prior-Embedding aus einer JSON-Datei
// (eine Zeile pro Token) und baut den Tensor (1, tokens, kanaele)
func loadPrior(ctx ml.Context, path string, opts priorformer.Options) (ml.Tensor, error) {
	if path == "" {
		return nil, nil
	}

	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows [][]float32
	if err := json.Unmarshal(bts, &rows); err != nil {
		return nil, fmt.Errorf("prior parsen: %w", err)
	}

	tokens := opts.Group * opts.Group
	channels := opts.EmbedDim * 4
	if len(rows) != tokens {
		return nil, fmt.Errorf("prior hat %d zeilen, erwartet %d", len(rows), tokens)
	}

	flat := make([]float32, 0, tokens*channels)
	for i, row := range rows {
		if len(row) != channels {
			return nil, fmt.Errorf("prior-zeile %d hat %d werte, erwartet %d", i, len(row), channels)
		}
		flat = append(flat, row...)
	}

	return ctx.FromFloats(flat, 1, tokens, channels), nil
}

func ServeHandler(cmd *cobra.Command, _ []string) error {
	modelPath, _ := cmd.Flags().GetString("model")
	maePath, _ := cmd.Flags().GetString("mae")

	m, err := loadModel(modelPath, maePath)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	return server.Serve(ln, m)
}

func RestoreHandler(cmd *cobra.Command, _ []string) error {
	modelPath, _ := cmd.Flags().GetString("model")
	maePath, _ := cmd.Flags().GetString("mae")
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	priorPath, _ := cmd.Flags().GetString("prior")

	m, err := loadModel(modelPath, maePath)
	if err != nil {
		return err
	}

	tf, ok := m.(*priorformer.Transformer)
	if !ok {
		return fmt.Errorf("geladenes modell unterstuetzt keine restaurierung")
	}
	opts := tf.Options()

	img, err := vision.LoadImage(input)
	if err != nil {
		return err
	}

	chw, _, err := vision.PrepareImage(img, opts.MAE.ImageSize)
	if err != nil {
		return err
	}

	ctx := m.Backend().NewContext()
	defer ctx.Close()

	prior, err := loadPrior(ctx, priorPath, opts)
	if err != nil {
		return err
	}

	image := ctx.FromFloats(chw, 1, opts.InChannels, opts.MAE.ImageSize, opts.MAE.ImageSize)

	start := time.Now()
	out, err := model.Forward(ctx, m, image, prior)
	if err != nil {
		return err
	}
	slog.Info("restauration abgeschlossen", "duration", time.Since(start))

	png, err := vision.EncodePNG(out.Floats(), out.Dim(2), out.Dim(3))
	if err != nil {
		return err
	}

	return os.WriteFile(output, png, 0o644)
}

func InfoHandler(cmd *cobra.Command, _ []string) error {
	modelPath, _ := cmd.Flags().GetString("model")
	maePath, _ := cmd.Flags().GetString("mae")

	m, err := loadModel(modelPath, maePath)
	if err != nil {
		return err
	}

	tensors := model.Tensors(m)
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	var total int64
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Name", "Shape", "Params"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")

	for _, name := range names {
		shape := tensors[name].Shape()
		count := int64(1)
		parts := make([]string, len(shape))
		for i, d := range shape {
			count *= int64(d)
			parts[i] = fmt.Sprintf("%d", d)
		}
		total += count

		table.Append([]string{name, "(" + strings.Join(parts, ", ") + ")", fmt.Sprintf("%d", count)})
	}
	table.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\ntensors: %d, parameters: %d\n", len(names), total)
	return nil
}

func VersionHandler(cmd *cobra.Command, _ []string) {
	fmt.Fprintln(cmd.OutOrStdout(), version.Version)
}

// NewCLI baut den Root-Command der CLI auf
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "priorformer",
		Short:         "Bild-Restaurierung mit Prior-konditioniertem Transformer",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
		},
		Version: version.Version,
	}

	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Startet den Restaurierungs-Server",
		Args:    cobra.ExactArgs(0),
		RunE:    ServeHandler,
	}
	serveCmd.Flags().String("model", "", "Modell-Verzeichnis (leer: PRIORFORMER_MODELS, sonst zufaellig initialisiert)")
	serveCmd.Flags().String("mae", "", "PyTorch-MAE-Checkpoint zum Ueberlagern")

	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Restauriert ein Bild",
		Args:  cobra.ExactArgs(0),
		RunE:  RestoreHandler,
	}
	restoreCmd.Flags().String("model", "", "Modell-Verzeichnis (leer: PRIORFORMER_MODELS, sonst zufaellig initialisiert)")
	restoreCmd.Flags().String("mae", "", "PyTorch-MAE-Checkpoint zum Ueberlagern")
	restoreCmd.Flags().String("input", "", "Eingabe-Bild (png, jpeg, bmp, tiff, webp)")
	restoreCmd.Flags().String("output", "restored.png", "Ausgabe-Datei (png)")
	restoreCmd.Flags().String("prior", "", "Prior-Embedding als JSON-Datei")
	_ = restoreCmd.MarkFlagRequired("input")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Zeigt die Tensoren des geladenen Modells",
		Args:  cobra.ExactArgs(0),
		RunE:  InfoHandler,
	}
	infoCmd.Flags().String("model", "", "Modell-Verzeichnis (leer: PRIORFORMER_MODELS, sonst zufaellig initialisiert)")
	infoCmd.Flags().String("mae", "", "PyTorch-MAE-Checkpoint zum Ueberlagern")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Zeigt die Version",
		Args:  cobra.ExactArgs(0),
		Run:   VersionHandler,
	}

	rootCmd.AddCommand(
		serveCmd,
		restoreCmd,
		infoCmd,
		versionCmd,
	)

	return rootCmd
}
