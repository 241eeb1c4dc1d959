package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Stage names in dispatch order.
var stages = []string{"gate", "loading", "weigh_in", "weigh_out", "departed", "delivered"}

// Pits and dump sites for plausible geolocation on delivery proofs.
var sites = []struct {
	Lat float64
	Lon float64
}{
	{Lat: 23.2599, Lon: 77.4126}, // Bhopal belt
	{Lat: 21.2514, Lon: 81.6296}, // Raipur
	{Lat: 23.3441, Lon: 85.3096}, // Ranchi
	{Lat: 22.0797, Lon: 82.1409}, // Bilaspur
	{Lat: 24.7914, Lon: 85.0002}, // Gaya
}

var authToken string

func authorizedPost(url string, contentType string, body *bytes.Buffer) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	return client.Do(req)
}

func randomTruckNo() string {
	states := []string{"MP", "CG", "JH", "OD", "BR"}
	return fmt.Sprintf("%s%02d%s%04d",
		states[rand.Intn(len(states))],
		1+rand.Intn(40),
		string(rune('A'+rand.Intn(26)))+string(rune('A'+rand.Intn(26))),
		1000+rand.Intn(9000))
}

func randomRoyaltyCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ0123456789"
	buf := make([]byte, 10)
	for i := range buf {
		buf[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return "RTY-" + string(buf)
}

type truckRun struct {
	ProcessID  string
	TruckNo    string
	DispatchID string
	IsRoyalty  bool
	// One permit code per checkpoint; the server flags a reused code as
	// a duplicate pass.
	RoyaltyCodes map[string]string
	GrossWeight  float64
	TareWeight   float64
}

func createProcess(apiURL string, seq int) (*truckRun, error) {
	run := &truckRun{
		TruckNo:    randomTruckNo(),
		DispatchID: fmt.Sprintf("DSP-%s-%03d", time.Now().Format("20060102"), seq),
		IsRoyalty:  rand.Intn(2) == 0,
		RoyaltyCodes: map[string]string{
			"gate":    randomRoyaltyCode(),
			"loading": randomRoyaltyCode(),
		},
		GrossWeight: 32 + rand.Float64()*18,
		TareWeight:  10 + rand.Float64()*4,
	}

	payload := map[string]interface{}{
		"truck_no":    run.TruckNo,
		"dispatch_id": run.DispatchID,
		"is_royalty":  run.IsRoyalty,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal process: %w", err)
	}

	resp, err := authorizedPost(apiURL+"/processes", "application/json", bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create process: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("process creation failed with status: %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	id, ok := result["id"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid process ID in response")
	}
	run.ProcessID = id

	log.WithFields(log.Fields{
		"process_id":  id,
		"truck_no":    run.TruckNo,
		"dispatch_id": run.DispatchID,
		"is_royalty":  run.IsRoyalty,
	}).Info("Created truck process")

	return run, nil
}

// evidenceFor builds the stage payload a checkpoint operator would
// submit for this truck.
func evidenceFor(run *truckRun, stage string) map[string]interface{} {
	ev := map[string]interface{}{}
	switch stage {
	case "gate", "loading":
		if run.IsRoyalty {
			ev["royalty_code"] = run.RoyaltyCodes[stage]
		} else {
			ev["video_url"] = fmt.Sprintf("https://media.mineflow.local/%s/%s.mp4", run.DispatchID, stage)
		}
	case "weigh_in":
		ev["gross_weight"] = run.GrossWeight
		ev["net_weight"] = run.GrossWeight - run.TareWeight
	case "weigh_out":
		ev["gross_weight"] = run.GrossWeight
		ev["net_weight"] = run.GrossWeight - run.TareWeight
	case "departed":
		ev["notes"] = "left weighbridge for delivery point"
	case "delivered":
		ev["notes"] = "unloaded at site"
	}
	return ev
}

func completeStage(apiURL string, run *truckRun, stage string) error {
	data, err := json.Marshal(evidenceFor(run, stage))
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	url := fmt.Sprintf("%s/processes/%s/stages/%s/complete", apiURL, run.ProcessID, stage)
	resp, err := authorizedPost(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to complete stage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stage completion failed with status: %d", resp.StatusCode)
	}

	log.WithFields(log.Fields{
		"process_id": run.ProcessID,
		"truck_no":   run.TruckNo,
		"stage":      stage,
	}).Info("Completed stage")
	return nil
}

// submitProof uploads a synthetic delivery photo so the terminal stage
// can close.
func submitProof(apiURL string, run *truckRun) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("photo", run.DispatchID+"-delivery.jpg")
	if err != nil {
		return err
	}
	// A few KB of noise stands in for the camera upload.
	noise := make([]byte, 4096)
	rand.Read(noise)
	if _, err := part.Write(noise); err != nil {
		return err
	}

	site := sites[rand.Intn(len(sites))]
	writer.WriteField("lat", strconv.FormatFloat(site.Lat, 'f', 6, 64))
	writer.WriteField("lon", strconv.FormatFloat(site.Lon, 'f', 6, 64))
	writer.WriteField("notes", "simulator delivery proof")
	if err := writer.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/processes/%s/proof", apiURL, run.ProcessID)
	resp, err := authorizedPost(url, writer.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("failed to submit proof: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("proof submission failed with status: %d", resp.StatusCode)
	}

	log.WithFields(log.Fields{
		"process_id": run.ProcessID,
		"truck_no":   run.TruckNo,
	}).Info("Submitted delivery proof")
	return nil
}

func simulateRun(apiURL string, run *truckRun, interval time.Duration) {
	for _, stage := range stages {
		// Trucks queue at checkpoints for uneven stretches.
		time.Sleep(interval + time.Duration(rand.Intn(int(interval)+1)))

		if stage == "delivered" {
			if err := submitProof(apiURL, run); err != nil {
				log.WithError(err).WithField("truck_no", run.TruckNo).Error("Proof upload failed")
				return
			}
		}
		if err := completeStage(apiURL, run, stage); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"truck_no": run.TruckNo,
				"stage":    stage,
			}).Error("Stage left incomplete")
			return
		}
	}

	log.WithFields(log.Fields{
		"process_id": run.ProcessID,
		"truck_no":   run.TruckNo,
	}).Info("Dispatch delivered")
}

func main() {
	// Optional JWT for protected API
	authToken = os.Getenv("SIM_AUTH_TOKEN")

	fleetSize := 10
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			fleetSize = n
		}
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	interval := 2 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting dispatch simulation")

	runs := make([]*truckRun, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		run, err := createProcess(apiURL, i+1)
		if err != nil {
			log.WithError(err).Error("Failed to create process")
			continue
		}
		runs = append(runs, run)
	}

	log.WithField("created_processes", len(runs)).Info("Process creation completed")
	if len(runs) == 0 {
		log.Error("No processes created. Ensure SIM_AUTH_TOKEN is valid and API is reachable. Exiting.")
		time.Sleep(2 * time.Second)
		return
	}

	for _, run := range runs {
		go simulateRun(apiURL, run, interval)
	}

	log.Info("Dispatch simulation started")
	select {} // Block forever
}
