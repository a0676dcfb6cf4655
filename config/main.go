package config

import "log"

type Config struct {
	EnvConfig   *EnvConfig
	Collections CollectionRegistry
}

func NewConfig() *Config {
	env := LoadEnvConfig()

	collections, err := LoadCollections(env.Media.CollectionsFile)
	if err != nil {
		log.Fatalf("Failed to load media collections: %v", err)
	}
	log.Printf("Loaded media collections for %d owner type(s) from %s", len(collections), env.Media.CollectionsFile)

	return &Config{
		EnvConfig:   env,
		Collections: collections,
	}
}
