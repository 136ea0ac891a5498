package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/laserscope/internal/analyser"
	"github.com/banshee-data/laserscope/internal/api"
	"github.com/banshee-data/laserscope/internal/config"
	"github.com/banshee-data/laserscope/internal/db"
	"github.com/banshee-data/laserscope/internal/profile"
	"github.com/banshee-data/laserscope/internal/recorder"
	"github.com/banshee-data/laserscope/internal/serialmux"
	"github.com/banshee-data/laserscope/internal/units"
	"github.com/banshee-data/laserscope/internal/version"
)

var (
	devMode       = flag.Bool("dev", false, "Replay -fixture instead of reading the sensor")
	fixture       = flag.String("fixture", "fixtures/profiles.txt", "Sensor lines replayed in dev mode")
	listen        = flag.String("listen", ":8080", "Listen address")
	port          = flag.String("port", "", "Serial port to use (overrides config; ignored in dev mode)")
	dbPath        = flag.String("db", "laserscope.db", "Measurement log database (empty disables logging)")
	configPath    = flag.String("config", "", "Path to JSON config (default "+config.DefaultConfigPath+" when present)")
	radius        = flag.Int("radius", -1, "Initial smoothing radius (overrides config)")
	unitsFlag     = flag.String("units", "", "Offset units: "+units.GetValidUnitsString()+" (overrides config)")
	disableSensor = flag.Bool("disable-sensor", false, "Run without a sensor; profiles can still be POSTed")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := applyFlagOverrides(cfg, *radius, *unitsFlag, *port); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	estimator := profile.NewEstimator(profile.FitOptions{
		MaxIterations: cfg.GetFitMaxIterations(),
		Tolerance:     cfg.GetFitTolerance(),
	})
	pipeline, err := analyser.New(
		analyser.WithEstimator(estimator),
		analyser.WithRadiusLimit(cfg.GetMaxSmoothingRadius()),
		analyser.WithRadius(cfg.GetSmoothingRadius()),
	)
	if err != nil {
		log.Fatalf("failed to create analyser: %v", err)
	}
	station := analyser.NewStation(pipeline)
	defer station.Close()

	sensor, err := openSensor(cfg)
	if err != nil {
		log.Fatalf("failed to open sensor: %v", err)
	}
	defer sensor.Close()

	if err := sensor.Initialize(cfg.InitCommands); err != nil {
		log.Fatalf("failed to initialize sensor: %v", err)
	}

	var database *db.DB
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
	}

	rec := recorder.New(nilStore(database), recorder.WithInterval(cfg.GetRecordInterval()))
	device := serialmux.NewDeviceState()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sensor.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runSensorLoop(ctx, sensor, station, device)
		log.Print("sensor routine terminated")
	}()

	if database != nil {
		// subscribe before restoring the zero so this run logs its starting zero
		id, events := station.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer station.Unsubscribe(id)
			rec.Run(ctx, events)
			log.Print("recorder routine terminated")
		}()

		if zero, ok, err := database.LatestZero(); err != nil {
			log.Printf("failed to restore zero: %v", err)
		} else if ok {
			station.SetZero(zero)
			log.Printf("restored zero reference %.3f px", zero)
		}
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiServer := api.NewServer(station, sensor, database, device, api.Options{
			Units:         cfg.GetUnits(),
			PixelPitchUM:  cfg.GetPixelPitchUM(),
			DisplayHeight: cfg.GetDisplayHeight(),
			RunID:         rec.RunID(),
		})
		mux := apiServer.ServeMux()
		sensor.AttachAdminRoutes(mux)
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach database admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("laserscope %s listening on %s (run %s)", version.Version, *listen, rec.RunID())

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// loadConfig reads path, or the defaults file when path is empty and the
// file exists. With neither, every setting takes its built-in default.
func loadConfig(path string) (*config.AnalyserConfig, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadConfig(config.DefaultConfigPath)
	}
	return config.EmptyConfig(), nil
}

func applyFlagOverrides(cfg *config.AnalyserConfig, radius int, unit, port string) error {
	if radius >= 0 {
		cfg.SmoothingRadius = &radius
	}
	if unit != "" {
		unit = strings.ToLower(unit)
		if !units.IsValid(unit) {
			return fmt.Errorf("invalid units %q: expected one of %s", unit, units.GetValidUnitsString())
		}
		cfg.Units = &unit
	}
	if port != "" {
		cfg.SerialPort = &port
	}
	return cfg.Validate()
}

func openSensor(cfg *config.AnalyserConfig) (serialmux.SerialMuxInterface, error) {
	switch {
	case *disableSensor:
		log.Print("sensor disabled")
		return serialmux.NewDisabledSerialMux(), nil
	case *devMode:
		lines, err := readFixture(*fixture)
		if err != nil {
			return nil, err
		}
		log.Printf("dev mode: replaying %d lines from %s", len(lines), *fixture)
		return serialmux.NewMockSerialMux(lines, 500*time.Millisecond), nil
	default:
		return serialmux.NewRealSerialMux(cfg.GetSerialPort(), serialmux.PortOptions{
			BaudRate: cfg.GetBaudRate(),
			DataBits: cfg.GetDataBits(),
			StopBits: cfg.GetStopBits(),
			Parity:   cfg.GetParity(),
		})
	}
}
