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
	"path/filepath"
	"time"
)

type recording struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Frames int    `json:"frames"`
	Status string `json:"status"`
}

type session struct {
	ID string `json:"id"`
}

type tickResponse struct {
	Advanced bool `json:"advanced"`
	State    struct {
		Current int  `json:"current"`
		AtEnd   bool `json:"at_end"`
	} `json:"state"`
}

func main() {
	var (
		baseURL string
		path    string
		outDir  string
		ticks   int
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "simviz server URL")
	flag.StringVar(&path, "path", "", "Recording path relative to the server's recordings directory")
	flag.StringVar(&outDir, "out", ".", "Directory for the fetched PNG frames")
	flag.IntVar(&ticks, "ticks", 0, "Stop after this many ticks, 0 plays to the end")
	flag.Parse()

	if path == "" {
		log.Fatal("-path is required")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	api := baseURL + "/api/v1"

	var rec recording
	if err := call(client, "POST", api+"/recordings", map[string]string{"path": path}, &rec); err != nil {
		log.Fatalf("Register failed: %v", err)
	}
	fmt.Printf("Recording %s (%s): %d frames, %s\n", rec.Name, rec.ID, rec.Frames, rec.Status)

	var sess session
	if err := call(client, "POST", api+"/recordings/"+rec.ID+"/sessions", nil, &sess); err != nil {
		log.Fatalf("Open session failed: %v", err)
	}
	defer func() {
		if err := call(client, "DELETE", api+"/sessions/"+sess.ID, nil, nil); err != nil {
			log.Printf("Close session failed: %v", err)
		}
	}()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	if err := fetchFrame(client, api+"/sessions/"+sess.ID+"/frame", filepath.Join(outDir, "frame-0000.png")); err != nil {
		log.Fatalf("Fetch frame failed: %v", err)
	}

	for i := 0; ticks == 0 || i < ticks; i++ {
		var resp tickResponse
		if err := call(client, "POST", api+"/sessions/"+sess.ID+"/tick", nil, &resp); err != nil {
			log.Fatalf("Tick failed: %v", err)
		}
		if resp.Advanced {
			name := fmt.Sprintf("frame-%04d.png", resp.State.Current)
			if err := fetchFrame(client, api+"/sessions/"+sess.ID+"/frame", filepath.Join(outDir, name)); err != nil {
				log.Fatalf("Fetch frame failed: %v", err)
			}
		}
		if resp.State.AtEnd {
			fmt.Printf("Reached end at frame %d\n", resp.State.Current)
			break
		}
	}
}

// call sends body as JSON and decodes a successful response into out.
func call(client *http.Client, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fetchFrame(client *http.Client, url, dst string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, resp.Body)
	return err
}
