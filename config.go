package braketexec

import (
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func loadConfig() {
	viper.SetConfigName("braketexecrc")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.braketexec")

	setupDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		log.Debugf("Config Read %+v", err)
	}

	viper.SetEnvPrefix("braketexec")
	viper.AutomaticEnv()
}

func setupDefaults() {
	defaultSettings := map[string]interface{}{
		"credentials":       defaultCredentialsFile(),
		"profile":           os.Getenv("AWS_PROFILE"),
		"s3Bucket":          "braket-hybrid-job-resources",
		"ecrRepo":           "braket-job-images",
		"executionRole":     "BraketJobsExecutionRole",
		"quantumDevice":     "arn:aws:braket:::device/quantum-simulator/amazon/sv1",
		"classicalDevice":   "ml.m5.large",
		"storage":           30,  // job instance volume size in GB
		"timeLimit":         300, // remote-enforced max runtime in seconds
		"scratchDir":        "/tmp/braketexec",
		"pollInterval":      30, // seconds between job status queries
		"jobNamePrefix":     "braketexec",
		"logGroup":          "/aws/braket/jobs",
		"baseImage":         "python:3.8-slim-buster",
		"containerWorkdir":  "/opt/ml/code",
		"imageDependencies": defaultImageDependencies,
	}
	for key, value := range defaultSettings {
		viper.SetDefault(key, value)
	}
}

// defaultImageDependencies is the pip dependency set installed into the job
// container so that the rendered execution script can run.
var defaultImageDependencies = []string{
	"amazon-braket-pennylane-plugin",
	"boto3==1.20.48",
	"cloudpickle==2.0.0",
	"pennylane==0.16.0",
	"sagemaker-training",
}

func defaultCredentialsFile() string {
	if creds := os.Getenv("AWS_SHARED_CREDENTIALS_FILE"); creds != "" {
		return creds
	}
	return filepath.Join(os.Getenv("HOME"), ".aws/credentials")
}

// Config holds the executor configuration. It is read once at construction
// and never mutated afterwards; concurrent pipelines share it read-only.
type Config struct {
	Credentials     string
	Profile         string
	S3Bucket        string
	ECRRepo         string
	ExecutionRole   string
	QuantumDevice   string
	ClassicalDevice string
	Storage         int64
	TimeLimit       int64
	ScratchDir      string
	PollInterval    time.Duration
	JobNamePrefix   string
	LogGroup        string

	BaseImage         string
	ContainerWorkdir  string
	ImageDependencies []string
}

// NewConfig loads the viper config from settings file(s) and environment
// and materializes it into a Config.
func NewConfig() Config {
	loadConfig()

	return Config{
		Credentials:     viper.GetString("credentials"),
		Profile:         viper.GetString("profile"),
		S3Bucket:        viper.GetString("s3Bucket"),
		ECRRepo:         viper.GetString("ecrRepo"),
		ExecutionRole:   viper.GetString("executionRole"),
		QuantumDevice:   viper.GetString("quantumDevice"),
		ClassicalDevice: viper.GetString("classicalDevice"),
		Storage:         viper.GetInt64("storage"),
		TimeLimit:       viper.GetInt64("timeLimit"),
		ScratchDir:      viper.GetString("scratchDir"),
		PollInterval:    time.Duration(viper.GetInt64("pollInterval")) * time.Second,
		JobNamePrefix:   viper.GetString("jobNamePrefix"),
		LogGroup:        viper.GetString("logGroup"),

		BaseImage:         viper.GetString("baseImage"),
		ContainerWorkdir:  viper.GetString("containerWorkdir"),
		ImageDependencies: viper.GetStringSlice("imageDependencies"),
	}
}
