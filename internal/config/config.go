package config

import (
	"github.com/BurntSushi/toml"
)

// Config структура конфигурации.
type Config struct {
	Logger LogConf    // Logger - конфигурация регистратора.
	MQTT   MQTTConf   // MQTT - конфигурация MQTT клиента.
	ArtNet ArtNetConf // ArtNet - конфигурация выхода Art-Net.
	MIDI   MIDIConf   // MIDI - конфигурация пульта управления.
	Engine EngineConf // Engine - конфигурация движка.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level string `toml:"log-level"` // Level - уровень логирования.
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	ClientID    string `toml:"clientID"`     // ClientID - имя клиента.
	Host        string `toml:"server"`       // Host - адрес MQTT сервера.
	Port        string `toml:"port"`         // Port - порт MQTT сервера.
	User        string `toml:"user"`         // User - логин для подключения к MQTT серверу.
	Password    string `toml:"password"`     // Password - пароль для подключения к MQTT серверу.
	Qos         byte   `toml:"qos"`          // Qos - качество обслуживания.
	TopicPrefix string `toml:"topic-prefix"` // TopicPrefix - корень дерева топиков.
}

// ArtNetConf структура конфигурации.
type ArtNetConf struct {
	Enabled      bool   `toml:"enabled"`            // Enabled - выключенный выход работает в режиме без оборудования.
	CIDR         string `toml:"cidr"`               // CIDR - сеть, в которой ищется интерфейс Art-Net.
	Universe     uint16 `toml:"universe"`           // Universe: старший байт - Net, младший байт - SubUni.
	FPS          int    `toml:"fps"`                // FPS - ограничение частоты кадров контроллера.
	ScanInterval int    `toml:"node-scan-interval"` // ScanInterval - период опроса узлов, секунды.
}

// MIDIConf структура конфигурации.
type MIDIConf struct {
	Enabled    bool   `toml:"enabled"`
	InputPort  string `toml:"input-port"`  // InputPort - подстрока имени входного порта.
	OutputPort string `toml:"output-port"` // OutputPort - подстрока имени выходного порта.
}

// EngineConf структура конфигурации.
type EngineConf struct {
	TickInterval    int    `toml:"tick-interval"`     // TickInterval - период расчёта фейдов, мс.
	StopTrackedOnly bool   `toml:"stop-tracked-only"` // StopTrackedOnly - stop гасит только каналы воспроизведения.
	ShowFile        string `toml:"show-file"`
	MappingsFile    string `toml:"mappings-file"`
}

// NewConfig конструктор.
func NewConfig(path string) (*Config, error) {
	// default values
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Logger: LogConf{Level: "info"},
		MQTT: MQTTConf{
			ClientID:    "lightdesk",
			Host:        "localhost",
			Port:        "1883",
			TopicPrefix: "lightdesk",
		},
		ArtNet: ArtNetConf{
			Enabled:      true,
			CIDR:         "192.168.6.0/24",
			FPS:          40,
			ScanInterval: 30,
		},
		MIDI: MIDIConf{Enabled: true},
		Engine: EngineConf{
			TickInterval: 20,
			ShowFile:     "data/show.yaml",
			MappingsFile: "data/midi-mappings.yaml",
		},
	}
}
