package main

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/pkg/errors"

	"github.com/NocaToca/Calico/config"
	"github.com/NocaToca/Calico/engine"
	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/instance"
	"github.com/NocaToca/Calico/window"
)

func init() {
	// This is needed to arrange that main() runs on main thread.
	// See documentation for functions that are only allowed to be called
	// from the main thread.
	runtime.LockOSThread()

	flag.BoolVar(&args.debug, "debug", false, "Enable Vulkan validation layers and debug logging")
	flag.StringVar(&args.config, "config", "", "TOML file with the engine configuration")
	flag.IntVar(&args.width, "width", 0, "Window width")
	flag.IntVar(&args.height, "height", 0, "Window height")
	flag.StringVar(&args.texture, "texture", "", "Texture image (png, jpeg or bmp)")
	flag.StringVar(&args.model, "model", "", "OBJ model drawn instead of the quad")
	flag.IntVar(&args.frames, "frames", 0, "Maximum number of frames in flight")
}

var args struct {
	debug   bool
	config  string
	width   int
	height  int
	texture string
	model   string
	frames  int
}

func main() {
	flag.Parse()

	slog.SetDefault(newLogger(os.Stderr, args.debug))

	if err := run(); err != nil {
		slog.Error("ERROR", "err", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadConfig applies the flags which were set on top of the configuration
// file, or the defaults when there is none.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if args.config != "" {
		var err error
		if cfg, err = config.Load(args.config); err != nil {
			return cfg, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Debug = args.debug
		case "width":
			cfg.Width = args.width
		case "height":
			cfg.Height = args.height
		case "texture":
			cfg.Texture = args.texture
		case "model":
			cfg.Model = args.model
		case "frames":
			cfg.MaxFramesInFlight = args.frames
		}
	})

	return cfg, cfg.Validate()
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "configuration")
	}

	win, err := window.New(cfg.Width, cfg.Height, cfg.Title)
	if err != nil {
		return errors.Wrap(err, "initWindow")
	}
	defer win.Destroy()

	if err := window.InitVulkan(); err != nil {
		return err
	}

	inst, err := instance.New(instance.Options{
		AppName:    cfg.Title,
		Extensions: win.RequiredExtensions(),
		Debug:      cfg.Debug,
	})
	if err != nil {
		return errors.Wrap(err, "createInstance")
	}
	defer inst.Destroy()

	if err := inst.CreateSurface(win); err != nil {
		return errors.Wrap(err, "createSurface")
	}

	ctx := engine.Context{
		Instance: inst.Handle(),
		Surface:  inst.Surface(),
		Layers:   inst.Layers(),
	}
	return engine.New(cfg, win, ctx, gpu.NewDriver()).Run()
}
