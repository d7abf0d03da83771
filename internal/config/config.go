package config

import (
	"flag"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	sc "github.com/sksmith/go-spring-config"
	"github.com/spf13/viper"
)

const (
	AppName  = "Spares Depot"
	Revision = "1"

	maxRetries = 5
)

var (
	// Build time arguments
	AppVersion  string
	Sha1Version string
	BuildTime   string

	// Runtime flags
	profile      *string
	configSource *string
	configUrl    *string
	configBranch *string
	configUser   *string
	configPass   *string
	printRoutes  *bool
)

type Config struct {
	AppName         string       `json:"appName"         yaml:"appName"`
	AppNameDesc     string       `json:"appNameDesc"     yaml:"appNameDesc"`
	AppVersion      string       `json:"appVersion"      yaml:"appVersion"`
	AppVersionDesc  string       `json:"appVersionDesc"  yaml:"appVersionDesc"`
	Sha1Version     string       `json:"sha1Version"     yaml:"sha1Version"`
	Sha1VersionDesc string       `json:"sha1VersionDesc" yaml:"sha1VersionDesc"`
	BuildTime       string       `json:"buildTime"       yaml:"buildTime"`
	BuildTimeDesc   string       `json:"buildTimeDesc"   yaml:"buildTimeDesc"`
	Profile         string       `json:"profile"         yaml:"profile"`
	ProfileDesc     string       `json:"profileDesc"     yaml:"profileDesc"`
	Revision        string       `json:"revision"        yaml:"revision"`
	RevisionDesc    string       `json:"revisionDesc"    yaml:"revisionDesc"`
	Port            string       `json:"port"            yaml:"port"`
	PortDesc        string       `json:"portDesc"        yaml:"portDesc"`
	PrintRoutes     bool         `json:"printRoutes"     yaml:"printRoutes"`
	PrintRoutesDesc string       `json:"printRoutesDesc" yaml:"printRoutesDesc"`
	Config          ConfigSource `json:"config"          yaml:"config"`
	ConfigDesc      string       `json:"configDesc"      yaml:"configDesc"`
	Log             LogConfig    `json:"log"             yaml:"log"`
	LogDesc         string       `json:"logDesc"         yaml:"logDesc"`
	Db              DbConfig     `json:"db"              yaml:"db"`
	DbDesc          string       `json:"dbDesc"          yaml:"dbDesc"`
	RabbitMQ        QueueConfig  `json:"rabbitmq"        yaml:"rabbitmq"`
	RabbitMQDesc    string       `json:"rabbitmqDesc"    yaml:"rabbitmqDesc"`
	Scan            ScanConfig   `json:"scan"            yaml:"scan"`
	ScanDesc        string       `json:"scanDesc"        yaml:"scanDesc"`
	Admin           AdminConfig  `json:"admin"           yaml:"admin"`
	AdminDesc       string       `json:"adminDesc"       yaml:"adminDesc"`
	Cors            CorsConfig   `json:"cors"            yaml:"cors"`
	CorsDesc        string       `json:"corsDesc"        yaml:"corsDesc"`
}

type ConfigSource struct {
	Print      bool         `json:"print"      yaml:"print"`
	PrintDesc  string       `json:"printDesc"  yaml:"printDesc"`
	Source     string       `json:"source"     yaml:"source"`
	SourceDesc string       `json:"sourceDesc" yaml:"sourceDesc"`
	Spring     SpringConfig `json:"spring"     yaml:"spring"`
	SpringDesc string       `json:"springDesc" yaml:"springDesc"`
}

type SpringConfig struct {
	Url        string `json:"url"        yaml:"url"`
	UrlDesc    string `json:"urlDesc"    yaml:"urlDesc"`
	Branch     string `json:"branch"     yaml:"branch"`
	BranchDesc string `json:"branchDesc" yaml:"branchDesc"`
	User       string `json:"user"       yaml:"user"`
	UserDesc   string `json:"userDesc"   yaml:"userDesc"`
	Pass       string `json:"pass"       yaml:"pass"       sensitive:"true"`
	PassDesc   string `json:"passDesc"   yaml:"passDesc"`
}

type LogConfig struct {
	Level          string `json:"level"          yaml:"level"`
	LevelDesc      string `json:"levelDesc"      yaml:"levelDesc"`
	Structured     bool   `json:"structured"     yaml:"structured"`
	StructuredDesc string `json:"structuredDesc" yaml:"structuredDesc"`
}

type DbConfig struct {
	Name         string       `json:"name"         yaml:"name"`
	NameDesc     string       `json:"nameDesc"     yaml:"nameDesc"`
	Host         string       `json:"host"         yaml:"host"`
	HostDesc     string       `json:"hostDesc"     yaml:"hostDesc"`
	Port         string       `json:"port"         yaml:"port"`
	PortDesc     string       `json:"portDesc"     yaml:"portDesc"`
	Migrate      bool         `json:"migrate"      yaml:"migrate"`
	MigrateDesc  string       `json:"migrateDesc"  yaml:"migrateDesc"`
	Clean        bool         `json:"clean"        yaml:"clean"`
	CleanDesc    string       `json:"cleanDesc"    yaml:"cleanDesc"`
	InMemory     bool         `json:"inMemory"     yaml:"inMemory"`
	InMemoryDesc string       `json:"inMemoryDesc" yaml:"inMemoryDesc"`
	User         string       `json:"user"         yaml:"user"`
	UserDesc     string       `json:"userDesc"     yaml:"userDesc"`
	Pass         string       `json:"pass"         yaml:"pass"         sensitive:"true"`
	PassDesc     string       `json:"passDesc"     yaml:"passDesc"`
	Pool         DbPoolConfig `json:"pool"         yaml:"pool"`
	PoolDesc     string       `json:"poolDesc"     yaml:"poolDesc"`
}

type DbPoolConfig struct {
	MinSize     int    `json:"minSize"     yaml:"minSize"`
	MinSizeDesc string `json:"minSizeDesc" yaml:"minSizeDesc"`
	MaxSize     int    `json:"maxSize"     yaml:"maxSize"`
	MaxSizeDesc string `json:"maxSizeDesc" yaml:"maxSizeDesc"`
}

type QueueConfig struct {
	Host       string            `json:"host"       yaml:"host"`
	HostDesc   string            `json:"hostDesc"   yaml:"hostDesc"`
	Port       string            `json:"port"       yaml:"port"`
	PortDesc   string            `json:"portDesc"   yaml:"portDesc"`
	User       string            `json:"user"       yaml:"user"`
	UserDesc   string            `json:"userDesc"   yaml:"userDesc"`
	Pass       string            `json:"pass"       yaml:"pass"       sensitive:"true"`
	PassDesc   string            `json:"passDesc"   yaml:"passDesc"`
	Mock       bool              `json:"mock"       yaml:"mock"`
	MockDesc   string            `json:"mockDesc"   yaml:"mockDesc"`
	Stock      ExchangeConfig    `json:"stock"      yaml:"stock"`
	StockDesc  string            `json:"stockDesc"  yaml:"stockDesc"`
	Order      ExchangeConfig    `json:"order"      yaml:"order"`
	OrderDesc  string            `json:"orderDesc"  yaml:"orderDesc"`
	Intake     IntakeQueueConfig `json:"intake"     yaml:"intake"`
	IntakeDesc string            `json:"intakeDesc" yaml:"intakeDesc"`
}

type ExchangeConfig struct {
	Exchange     string `json:"exchange"     yaml:"exchange"`
	ExchangeDesc string `json:"exchangeDesc" yaml:"exchangeDesc"`
}

type IntakeQueueConfig struct {
	Queue     string         `json:"queue"     yaml:"queue"`
	QueueDesc string         `json:"queueDesc" yaml:"queueDesc"`
	Dlt       ExchangeConfig `json:"dlt"       yaml:"dlt"`
	DltDesc   string         `json:"dltDesc"   yaml:"dltDesc"`
}

type ScanConfig struct {
	TTL               time.Duration `json:"ttl"               yaml:"ttl"`
	TTLDesc           string        `json:"ttlDesc"           yaml:"ttlDesc"`
	MaxChallenges     int           `json:"maxChallenges"     yaml:"maxChallenges"`
	MaxChallengesDesc string        `json:"maxChallengesDesc" yaml:"maxChallengesDesc"`
	PublicUrl         string        `json:"publicUrl"         yaml:"publicUrl"`
	PublicUrlDesc     string        `json:"publicUrlDesc"     yaml:"publicUrlDesc"`
	TriggerRate       float64       `json:"triggerRate"       yaml:"triggerRate"`
	TriggerRateDesc   string        `json:"triggerRateDesc"   yaml:"triggerRateDesc"`
	TriggerBurst      int           `json:"triggerBurst"      yaml:"triggerBurst"`
	TriggerBurstDesc  string        `json:"triggerBurstDesc"  yaml:"triggerBurstDesc"`
}

type AdminConfig struct {
	User     string `json:"user"     yaml:"user"`
	UserDesc string `json:"userDesc" yaml:"userDesc"`
	Pass     string `json:"pass"     yaml:"pass"     sensitive:"true"`
	PassDesc string `json:"passDesc" yaml:"passDesc"`
}

type CorsConfig struct {
	AllowedOrigins     []string `json:"allowedOrigins"     yaml:"allowedOrigins"`
	AllowedOriginsDesc string   `json:"allowedOriginsDesc" yaml:"allowedOriginsDesc"`
}

// Production reports whether the service runs with the prod profile, where
// internal error details are withheld from responses.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Profile, "prod")
}

func (c *Config) Print() {
	if c.Config.Print {
		log.Info().Interface("config", c).Msg("the following configurations have successfully loaded")
	}
}

func init() {
	profile = flag.String("p", "local", "profile for the application config")
	configSource = flag.String("s", "local", "where to get configurations from (local, spring)")
	configUrl = flag.String("cfgUrl", "", "url for application config server")
	configBranch = flag.String("cfgBranch", "", "branch to request from the configuration server (used for spring cloud config)")
	configUser = flag.String("cfgUser", "", "username to use when connecting to the application server")
	configPass = flag.String("cfgPass", "", "password to use when connecting to the application server")
	printRoutes = flag.Bool("routes", false, "print the route table on startup")

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("profile", "local")
	viper.SetDefault("printRoutes", false)

	viper.SetDefault("config.print", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.structured", false)

	viper.SetDefault("db.name", "spares-db")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "postgres")
	viper.SetDefault("db.pass", "postgres")
	viper.SetDefault("db.migrate", true)
	viper.SetDefault("db.clean", false)
	viper.SetDefault("db.inMemory", false)
	viper.SetDefault("db.pool.minSize", 2)
	viper.SetDefault("db.pool.maxSize", 20)

	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", "5672")
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.pass", "guest")
	viper.SetDefault("rabbitmq.mock", false)
	viper.SetDefault("rabbitmq.stock.exchange", "stock.exchange")
	viper.SetDefault("rabbitmq.order.exchange", "order.exchange")
	viper.SetDefault("rabbitmq.intake.queue", "stock.intake.queue")
	viper.SetDefault("rabbitmq.intake.dlt.exchange", "stock.intake.dlt.exchange")

	viper.SetDefault("scan.ttl", "60s")
	viper.SetDefault("scan.maxChallenges", 1024)
	viper.SetDefault("scan.publicUrl", "http://localhost:8080")
	viper.SetDefault("scan.triggerRate", 2.0)
	viper.SetDefault("scan.triggerBurst", 5)

	viper.SetDefault("admin.user", "admin")
	viper.SetDefault("admin.pass", "123")

	viper.SetDefault("cors.allowedOrigins", []string{"http://localhost*", "https://localhost*"})

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the flags and then the configured source. It exits the process
// if configurations cannot be loaded.
func Load() *Config {
	if !flag.Parsed() {
		flag.Parse()
	}

	config, err := createConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configurations")
	}

	switch *configSource {
	case "local":
		err = loadLocalConfigs(config)
	case "spring":
		err = loadRemoteConfigs(config)
	default:
		log.Warn().
			Str("configSource", *configSource).
			Msg("unrecognized configuration source, using local")

		err = loadLocalConfigs(config)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configurations")
	}

	if *printRoutes {
		config.PrintRoutes = true
	}

	return config
}

// LoadDefaults builds a configuration from defaults and the environment only.
func LoadDefaults() *Config {
	config, err := createConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create configurations")
	}
	if err = unmarshal(config); err != nil {
		log.Fatal().Err(err).Msg("failed to load default configurations")
	}
	return config
}

func createConfig() (config *Config, err error) {
	config = &Config{}
	setDescriptions(config)

	config.Config.Source = *configSource

	config.Config.Spring.Url = *configUrl
	config.Config.Spring.Branch = *configBranch
	config.Config.Spring.User = *configUser
	config.Config.Spring.Pass = *configPass

	viper.SetDefault("profile", *profile)

	return config, nil
}

func loadLocalConfigs(config *Config) error {
	log.Info().Msg("loading local configurations...")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.WithMessage(err, "failed to read config file")
		}
		log.Warn().Msg("no config file found, using defaults and environment")
	}

	return unmarshal(config)
}

func loadRemoteConfigs(config *Config) error {
	log.Info().
		Str("url", config.Config.Spring.Url).
		Str("branch", config.Config.Spring.Branch).
		Msg("loading remote configurations...")

	var remote *sc.Config
	var err error

	for tryCount := 1; tryCount <= maxRetries; tryCount++ {
		remote, err = sc.LoadWithCreds(config.Config.Spring.Url, AppName, config.Config.Spring.Branch,
			config.Config.Spring.User, config.Config.Spring.Pass, *profile)
		if err == nil {
			break
		}
		log.Error().Err(err).Int("try", tryCount).Msg("failed to load configurations... retrying")
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return errors.WithMessage(err, "failed to reach config server")
	}

	for k, v := range remote.Values {
		viper.Set(k, v)
	}

	return unmarshal(config)
}

// unmarshal keeps the fields that come from flags and build arguments rather
// than from viper.
func unmarshal(config *Config) error {
	source := config.Config

	if err := viper.Unmarshal(config); err != nil {
		return errors.WithStack(err)
	}

	config.Config.Source = source.Source
	config.Config.Spring = source.Spring
	config.AppName = AppName
	config.AppVersion = AppVersion
	config.Sha1Version = Sha1Version
	config.BuildTime = BuildTime
	config.Revision = Revision
	setDescriptions(config)

	return nil
}

func setDescriptions(config *Config) {
	config.AppNameDesc = "Name of the application in a human readable format. Example: Spares Depot"
	config.AppVersionDesc = "Semantic version of the application. Example: v1.2.3"
	config.Sha1VersionDesc = "Git sha1 hash of the application version."
	config.BuildTimeDesc = "When the application was compiled."
	config.ProfileDesc = "Running profile of the application, can assist with sensible defaults or change behavior. Examples: local, dev, prod"
	config.RevisionDesc = "A hard coded revision handy for quickly determining if local changes are running. Examples: 1, Two, 9999"
	config.PortDesc = "Port that the application will bind to on startup. Examples: 8080, 5000"
	config.PrintRoutesDesc = "Print the route table as json on startup."
	config.ConfigDesc = "Settings for where and how the application should get its configurations."
	config.LogDesc = "Settings for application logging."
	config.DbDesc = "Database configurations."
	config.RabbitMQDesc = "RabbitMQ configurations."
	config.ScanDesc = "Settings for the QR scan confirmation that gates storefront orders."
	config.AdminDesc = "The admin credential used by the back office screens."
	config.CorsDesc = "Cross origin settings for the storefront and admin web clients."

	config.Config.PrintDesc = "Print configurations on startup."
	config.Config.SourceDesc = "Where the application should go for configurations. Examples: local, spring"
	config.Config.SpringDesc = "Configuration settings for Spring Cloud Config. These are only used if config.source is spring."

	config.Config.Spring.UrlDesc = "The url of the Spring Cloud Config server."
	config.Config.Spring.BranchDesc = "The git branch to use to pull configurations from. Examples: main, master, development"
	config.Config.Spring.UserDesc = "User to use when connecting to the Spring Cloud Config server."
	config.Config.Spring.PassDesc = "Password to use when connecting to the Spring Cloud Config server."

	config.Log.LevelDesc = "The lowest level that the application should log at. Examples: info, warn, error."
	config.Log.StructuredDesc = "Whether the application should output structured (json) logging, or human friendly plain text."

	config.Db.NameDesc = "The name of the database to connect to."
	config.Db.HostDesc = "Host of the database."
	config.Db.PortDesc = "Port of the database."
	config.Db.MigrateDesc = "Whether or not database migrations should be executed on startup."
	config.Db.CleanDesc = "WARNING: THIS WILL DELETE ALL DATA FROM THE DB. Used only during migration. If clean is true, all 'down' migrations are executed."
	config.Db.InMemoryDesc = "Whether or not the application should use an in memory database."
	config.Db.UserDesc = "User the application will use to connect to the database."
	config.Db.PassDesc = "Password the application will use for connecting to the database."
	config.Db.PoolDesc = "Connection pool sizing."
	config.Db.Pool.MinSizeDesc = "Minimum number of pooled connections."
	config.Db.Pool.MaxSizeDesc = "Maximum number of pooled connections."

	config.RabbitMQ.HostDesc = "RabbitMQ's broker host."
	config.RabbitMQ.PortDesc = "RabbitMQ's broker host port."
	config.RabbitMQ.UserDesc = "User the application will use to connect to RabbitMQ."
	config.RabbitMQ.PassDesc = "Password the application will use to connect to RabbitMQ."
	config.RabbitMQ.MockDesc = "Whether or not the application should mock sending messages to RabbitMQ."
	config.RabbitMQ.StockDesc = "RabbitMQ settings for stock level updates."
	config.RabbitMQ.OrderDesc = "RabbitMQ settings for order updates."
	config.RabbitMQ.IntakeDesc = "RabbitMQ settings for incoming stock entries from suppliers."
	config.RabbitMQ.Stock.ExchangeDesc = "RabbitMQ exchange to use for posting stock updates."
	config.RabbitMQ.Order.ExchangeDesc = "RabbitMQ exchange to use for posting order updates."
	config.RabbitMQ.Intake.QueueDesc = "Queue used for listening to new stock entries."
	config.RabbitMQ.Intake.DltDesc = "Configurations for the intake dead letter topic, where messages that fail to be read from the queue are written."
	config.RabbitMQ.Intake.Dlt.ExchangeDesc = "Exchange used for posting messages to the dead letter topic."

	config.Scan.TTLDesc = "How long a scan challenge stays valid. Examples: 60s, 2m"
	config.Scan.MaxChallengesDesc = "Maximum number of outstanding scan challenges kept in memory."
	config.Scan.PublicUrlDesc = "Externally reachable base url, encoded into the QR code."
	config.Scan.TriggerRateDesc = "Scan triggers allowed per second per client."
	config.Scan.TriggerBurstDesc = "Burst size for scan triggers per client."

	config.Admin.UserDesc = "Admin username."
	config.Admin.PassDesc = "Admin password."

	config.Cors.AllowedOriginsDesc = "Origins allowed to call the api. Wildcards are supported. Example: https://*.example.com"
}
