// Package config reads the two-level YAML config file and applies
// environment overrides for secrets. The parser only understands the
// section/key format used by deploy/config.example.yaml.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Server struct {
	Port            int
	Store           string // memory | postgres
	AdminKey        string
	JoinTokenSecret string
	JoinTokenTTLMin int
}

type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type Rabbit struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
}

type App struct {
	Server   Server
	Database Database
	Rabbit   Rabbit
}

// Enabled reports whether a postgres backend was configured at all.
func (d Database) Enabled() bool { return d.Host != "" }

// Enabled reports whether the notification bridge was configured.
func (r Rabbit) Enabled() bool { return r.Host != "" }

func defaults() App {
	return App{
		Server:   Server{Port: 3000, Store: "memory", JoinTokenTTLMin: 60},
		Database: Database{Port: 5432, SSLMode: "disable"},
		Rabbit:   Rabbit{Port: 5672, VHost: "/"},
	}
}

// Load parses the YAML file, then lets .env / process env override the
// secrets so they stay out of the config file.
func Load(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	a := defaults()
	var section string
	for _, ln := range strings.Split(string(b), "\n") {
		line := strings.TrimSpace(ln)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			section = strings.TrimSuffix(line, ":")
			continue
		}
		kv := strings.SplitN(line, ":", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.Trim(strings.TrimSpace(kv[1]), `"'`)
		switch section {
		case "server":
			assignServer(&a.Server, k, v)
		case "database":
			assignDB(&a.Database, k, v)
		case "rabbitmq":
			assignMQ(&a.Rabbit, k, v)
		}
	}

	_ = godotenv.Load() // optional .env next to the binary
	if s := os.Getenv("JOIN_TOKEN_SECRET"); s != "" {
		a.Server.JoinTokenSecret = s
	}
	if s := os.Getenv("ADMIN_KEY"); s != "" {
		a.Server.AdminKey = s
	}
	if s := os.Getenv("DB_PASSWORD"); s != "" {
		a.Database.Password = s
	}
	if s := os.Getenv("RABBITMQ_PASSWORD"); s != "" {
		a.Rabbit.Password = s
	}

	if a.Server.JoinTokenSecret == "" {
		return App{}, errors.New("invalid config: join token secret is required")
	}
	if a.Server.AdminKey == "" {
		return App{}, errors.New("invalid config: admin key is required")
	}
	if a.Server.Store == "postgres" && !a.Database.Enabled() {
		return App{}, errors.New("invalid config: store is postgres but database host is missing")
	}
	return a, nil
}

func assignServer(s *Server, k, v string) {
	switch k {
	case "port":
		s.Port = atoi(v, s.Port)
	case "store":
		s.Store = v
	case "admin_key":
		s.AdminKey = v
	case "join_token_secret":
		s.JoinTokenSecret = v
	case "join_token_ttl_minutes":
		s.JoinTokenTTLMin = atoi(v, s.JoinTokenTTLMin)
	}
}

func assignDB(d *Database, k, v string) {
	switch k {
	case "host":
		d.Host = v
	case "port":
		d.Port = atoi(v, d.Port)
	case "user":
		d.User = v
	case "password":
		d.Password = v
	case "database":
		d.Database = v
	case "sslmode":
		d.SSLMode = v
	}
}

func assignMQ(m *Rabbit, k, v string) {
	switch k {
	case "host":
		m.Host = v
	case "port":
		m.Port = atoi(v, m.Port)
	case "user":
		m.User = v
	case "password":
		m.Password = v
	case "vhost":
		m.VHost = v
	}
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// FindConfig checks the conventional locations.
func FindConfig() (string, error) {
	for _, p := range []string{"config.yaml", "deploy/config.example.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", os.ErrNotExist
}
