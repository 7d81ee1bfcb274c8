// Command layout-annotate pre-annotates a directory of page images with YOLO
// label files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nvr-ai/go-layout/config"
	"github.com/nvr-ai/go-layout/images"
	"github.com/nvr-ai/go-layout/inference"
	"github.com/nvr-ai/go-layout/logger"
	"github.com/nvr-ai/go-layout/models/postprocess"
	"github.com/nvr-ai/go-layout/render"
	"github.com/nvr-ai/go-layout/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// annotator runs every image of a directory through the detector and the
// pipeline and writes the results.
type annotator struct {
	detector  inference.Detector
	pipeline  *postprocess.Pipeline
	params    inference.Params
	outputDir string
	// writeImages also writes an annotated PNG per image.
	writeImages bool
	style       render.Style
	logger      *zap.Logger
}

// summary counts the outcome of a run.
type summary struct {
	Images  int
	Failed  int
	Regions int
}

func (a *annotator) run(ctx context.Context, files []util.ImageFile) (summary, error) {
	var s summary
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return s, errors.Wrapf(err, "create output directory %s", a.outputDir)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		n, err := a.annotate(ctx, f)
		if err != nil {
			s.Failed++
			a.logger.Warn("⚠️  image skipped", zap.String("path", f.Path), zap.Error(err))
			continue
		}
		s.Images++
		s.Regions += n
		a.logger.Info("image annotated", zap.String("path", f.Path), zap.Int("regions", n))
	}
	return s, nil
}

func (a *annotator) annotate(ctx context.Context, f util.ImageFile) (int, error) {
	img, err := images.Decode(f.Data)
	if err != nil {
		return 0, err
	}
	defer img.Close()

	raw, err := a.detector.Detect(ctx, img, a.params)
	if err != nil {
		return 0, err
	}
	res, err := a.pipeline.Run(raw, img.Width, img.Height)
	if err != nil {
		return 0, err
	}

	labels := filepath.Join(a.outputDir, f.Stem+".txt")
	if err := util.WriteFileAtomic(labels, []byte(render.YOLOText(res.Regions))); err != nil {
		return 0, err
	}

	if a.writeImages {
		png, err := render.AnnotatePNG(img.Mat, res.Regions, a.style)
		if err != nil {
			return 0, err
		}
		if err := util.WriteFileAtomic(filepath.Join(a.outputDir, f.Stem+".png"), png); err != nil {
			return 0, err
		}
	}
	return len(res.Regions), nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var (
		inputDir    string
		outputDir   string
		writeImages bool
	)
	flag.StringVar(&inputDir, "input", "", "Directory of page images to annotate")
	flag.StringVar(&outputDir, "output", "labels", "Directory for the YOLO label files")
	flag.BoolVar(&writeImages, "images", false, "Also write annotated PNGs")
	flag.IntVar(&cfg.Defaults.ImageSize, "imgsz", cfg.Defaults.ImageSize, "Inference size")
	flag.Float64Var(&cfg.Defaults.IoU, "iou", cfg.Defaults.IoU, "NMS IoU threshold")
	flag.Float64Var(&cfg.Defaults.MinConfidence, "conf-min", cfg.Defaults.MinConfidence, "Global confidence floor")
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "Path to the YOLOv8 ONNX weights")
	flag.Parse()

	if inputDir == "" {
		fmt.Fprintln(os.Stderr, "-input is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	pipeline, err := cfg.LoadPipeline()
	if err != nil {
		log.Fatal("❌ pipeline", zap.Error(err))
	}
	detector, err := cfg.NewDetector(pipeline.Vocabulary().Len(), log)
	if err != nil {
		log.Fatal("❌ detector", zap.Error(err))
	}
	defer detector.Close()

	files, err := util.LoadDirectoryImageFiles(inputDir)
	if err != nil {
		log.Fatal("❌ input", zap.Error(err))
	}
	log.Info("📂 images found", zap.String("dir", inputDir), zap.Int("count", len(files)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &annotator{
		detector:    detector,
		pipeline:    pipeline,
		params:      cfg.Defaults,
		outputDir:   outputDir,
		writeImages: writeImages,
		style:       render.DefaultStyle(),
		logger:      log,
	}
	s, err := a.run(ctx, files)
	log.Info("✅ done",
		zap.Int("annotated", s.Images),
		zap.Int("failed", s.Failed),
		zap.Int("regions", s.Regions),
	)
	if err != nil {
		log.Error("❌ interrupted", zap.Error(err))
		os.Exit(1)
	}
}
