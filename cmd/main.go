package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"lightdesk/internal/artnet"
	"lightdesk/internal/clientmqtt"
	"lightdesk/internal/config"
	"lightdesk/internal/console"
	"lightdesk/internal/dmx"
	"lightdesk/internal/logger"
	"lightdesk/internal/mididev"
	"lightdesk/internal/midimap"
	"lightdesk/internal/show"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v", err)
		os.Exit(1)
	}

	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	store, err := show.Load(cfg.Engine.ShowFile)
	if err != nil {
		log.With(logger.Fields{"module": "show"}).Errorf("failed to load show. %v", err)
		os.Exit(1)
	}

	mappings, err := midimap.Load(cfg.Engine.MappingsFile)
	if err != nil {
		log.With(logger.Fields{"module": "midi"}).Errorf("failed to load midi mappings. %v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	client := clientmqtt.NewClient(log, cfg.MQTT)
	log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")

	// Без контроллера движок работает в режиме без оборудования.
	var out dmx.Output
	var a *artnet.ArtNet
	if cfg.ArtNet.Enabled {
		a, err = artnet.NewController(log, cfg.ArtNet, func(nodes []artnet.Node) {
			client.Publish(console.TopicNodes, nodes)
		})
		if err != nil {
			log.With(logger.Fields{"module": "art-net"}).Errorf("error while creating a new controller art-net, running degraded. %v", err)
			a = nil
		}
	}
	if a != nil {
		if err = a.Start(ctx); err != nil {
			log.Error("failed to start art-net service, running degraded: ", err.Error())
			a = nil
		} else {
			out = a
		}
	}

	desk := console.New(log, clock.New(), out, store, mappings, client, console.Options{
		TickInterval:    time.Duration(cfg.Engine.TickInterval) * time.Millisecond,
		StopTrackedOnly: cfg.Engine.StopTrackedOnly,
	})

	// Движок тикает независимо от брокера.
	go desk.Run(ctx)

	// Состояние публикуется заново при каждом подключении к брокеру.
	if err = client.Start(ctx, desk.Dispatch, desk.PublishAll); err != nil {
		log.Error("failed to start MQTT service:", err.Error())
		cancel()
	}

	device := mididev.Open(log, cfg.MIDI, desk.OnMIDI)
	desk.SetFeedback(device)

	<-ctx.Done()

	desk.Shutdown()
	device.Close()

	if err := client.Stop(); err != nil {
		log.Error("failed to stop MQTT service:", err.Error())
	}

	if a != nil {
		a.Stop()
	}

	log.Info("shutdown complete")
}
