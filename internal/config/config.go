package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const EnvPrefix = "OVERTIME_"

type Application struct {
	Server   Server   `koanf:"server"`
	Local    Local    `koanf:"local"`
	Remote   Remote   `koanf:"remote"`
	Database Database `koanf:"db"`
	Auth     Auth     `koanf:"auth"`
	Overtime Overtime `koanf:"overtime"`
	Sync     Sync     `koanf:"sync"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

// Local points at the SQLite file holding the week collection and sync metadata.
// An empty path resolves to the user config directory.
type Local struct {
	Path string `koanf:"path"`
}

type Remote struct {
	Enabled bool `koanf:"enabled"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Auth struct {
	Secret   string        `koanf:"secret"`
	TokenTTL time.Duration `koanf:"tokenttl"`
}

// Overtime holds the band ceilings and display limits, in hours.
type Overtime struct {
	Normal     float64 `koanf:"normal"`
	Overtime25 float64 `koanf:"overtime25"`
	LegalLimit float64 `koanf:"legallimit"`
	DailyLimit float64 `koanf:"dailylimit"`
}

type Sync struct {
	Interval        time.Duration `koanf:"interval"`
	MergePolicy     string        `koanf:"mergepolicy"`
	PushConcurrency int           `koanf:"pushconcurrency"`
}

func Defaults() Application {
	return Application{
		Server: Server{
			Addr: ":8181",
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "overtime",
			Pass:   "",
			Name:   "overtime",
			Schema: "overtime",
		},
		Auth: Auth{
			TokenTTL: 24 * time.Hour,
		},
		Overtime: Overtime{
			Normal:     35,
			Overtime25: 43,
			LegalLimit: 48,
			DailyLimit: 10,
		},
		Sync: Sync{
			Interval:        5 * time.Minute,
			MergePolicy:     "session",
			PushConcurrency: 4,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, EnvPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
