package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SeedData represents the structure of the sample feedback file
type SeedData struct {
	Feedback []string `json:"feedback"`
}

type submitResponse struct {
	ID          string  `json:"id"`
	Sentiment   string  `json:"sentiment"`
	Confidence  float64 `json:"confidence"`
	LLMResponse string  `json:"llm_response"`
	HasAudio    bool    `json:"has_audio"`
	AudioError  *string `json:"audio_error"`
	Error       string  `json:"error"`
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	server := flag.String("server", "http://localhost:"+port, "base URL of the running server")
	file := flag.String("file", "data/sample-feedback.json", "JSON file with sample feedback")
	flag.Parse()

	data, err := loadSeedData(*file)
	if err != nil {
		log.Fatalf("❌ Failed to load sample feedback: %v", err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	submitted := 0
	for _, text := range data.Feedback {
		resp, err := submit(client, *server, text)
		if err != nil {
			log.Printf("⚠️  Failed to submit %q: %v", text, err)
			continue
		}
		submitted++

		audio := "audio ready"
		if !resp.HasAudio && resp.AudioError != nil {
			audio = *resp.AudioError
		}
		log.Printf("✅ %s %s (%.2f) | %s", resp.ID, resp.Sentiment, resp.Confidence, audio)
	}

	log.Printf("✅ Seeding completed: %d of %d submissions recorded", submitted, len(data.Feedback))
}

func loadSeedData(path string) (*SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data SeedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func submit(client *http.Client, server, text string) (*submitResponse, error) {
	body, err := json.Marshal(map[string]string{"feedback": text})
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(strings.TrimRight(server, "/")+"/submit_feedback", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result submitResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, result.Error)
	}
	return &result, nil
}
