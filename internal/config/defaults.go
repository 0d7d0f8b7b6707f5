package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Capture: CaptureConfig{
			Input:       "default",
			Fallback:    "default",
			SampleRate:  16000,
			Channels:    1,
			LoopSeconds: 30,
			PreRollMS:   300,
			MinClipMS:   250,
			MaxClipMS:   10000,
		},
		STT: STTConfig{
			Endpoint:  "http://127.0.0.1:8080/inference",
			TimeoutMS: 15000,
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			BaseURL:   "",
			APIKeyEnv: "OPENAI_API_KEY",
			TimeoutMS: 10000,
		},
		Resolver: ResolverConfig{
			CacheEnable:     true,
			HeuristicEnable: true,
		},
		Actions: ActionsConfig{},
		Debug:   DebugConfig{},
	}
}
