// Package main provides a voice plugin that speaks form feedback through the
// platform's text-to-speech command: say on macOS, espeak or spd-say elsewhere.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action   string          `json:"action"`
	Exercise string          `json:"exercise"`
	Text     string          `json:"text"`
	Settings json.RawMessage `json:"settings"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// voiceConfig is the optional per-call voice settings.
type voiceConfig struct {
	Voice string `json:"voice"`
	Rate  int    `json:"rate"` // words per minute
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "speak" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeErrorResponse("text is required")
		return
	}

	var cfg voiceConfig
	if len(req.Settings) > 0 {
		if err := json.Unmarshal(req.Settings, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid settings: %v", err))
			return
		}
	}

	name, args, err := speechCommand(runtime.GOOS, text, cfg, exec.LookPath)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if out, err := exec.Command(name, args...).CombinedOutput(); err != nil {
		writeErrorResponse(fmt.Sprintf("%s failed: %v: %s", name, err, out))
		return
	}

	writeSuccessResponse()
}

// speechCommand picks the text-to-speech command for goos.
func speechCommand(goos, text string, cfg voiceConfig, lookPath func(string) (string, error)) (string, []string, error) {
	if goos == "darwin" {
		args := []string{}
		if cfg.Voice != "" {
			args = append(args, "-v", cfg.Voice)
		}
		if cfg.Rate > 0 {
			args = append(args, "-r", fmt.Sprint(cfg.Rate))
		}
		return "say", append(args, text), nil
	}

	if _, err := lookPath("espeak"); err == nil {
		args := []string{}
		if cfg.Voice != "" {
			args = append(args, "-v", cfg.Voice)
		}
		if cfg.Rate > 0 {
			args = append(args, "-s", fmt.Sprint(cfg.Rate))
		}
		return "espeak", append(args, text), nil
	}

	if _, err := lookPath("spd-say"); err == nil {
		return "spd-say", []string{"--wait", text}, nil
	}

	return "", nil, errors.New("no text-to-speech command found (need say, espeak or spd-say)")
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: true,
	})
}
