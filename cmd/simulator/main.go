package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// FaultReport mirrors the submit-report request body.
type FaultReport struct {
	OperatorID      string   `json:"operator_id"`
	MachineID       string   `json:"machine_id"`
	AffectedPart    string   `json:"affected_part"`
	ProblemCategory string   `json:"problem_category"`
	Description     string   `json:"description"`
	Symptoms        []string `json:"symptoms"`
	ErrorCodes      string   `json:"error_codes"`
	Severity        string   `json:"severity"`
}

var categories = []string{
	"drill_bit_issues",
	"drill_rod_problems",
	"engine_issues",
	"hydraulic_problems",
	"electrical_faults",
	"mechanical_breakdown",
}

var severities = []string{"low", "medium", "high", "critical"}

var partsByCategory = map[string][]string{
	"drill_bit_issues":     {"drill bit", "bit holder", "shank adapter"},
	"drill_rod_problems":   {"drill rod", "rod coupling", "rod changer"},
	"engine_issues":        {"diesel engine", "turbocharger", "fuel injector"},
	"hydraulic_problems":   {"hydraulic pump", "boom cylinder", "hose assembly"},
	"electrical_faults":    {"wiring harness", "control panel", "alternator"},
	"mechanical_breakdown": {"track drive", "swing gear", "feed motor"},
}

var symptomPool = []string{
	"abnormal vibration",
	"loud knocking noise",
	"overheating",
	"pressure drop",
	"fluid leak",
	"intermittent power loss",
	"excessive wear visible",
	"warning light on",
}

func randomReport(operatorID, machineID string) FaultReport {
	category := categories[rand.Intn(len(categories))]
	parts := partsByCategory[category]
	part := parts[rand.Intn(len(parts))]

	symptoms := make([]string, 0, 3)
	for _, s := range rand.Perm(len(symptomPool))[:1+rand.Intn(3)] {
		symptoms = append(symptoms, symptomPool[s])
	}

	errorCodes := ""
	if rand.Intn(2) == 0 {
		errorCodes = fmt.Sprintf("E%03d", 100+rand.Intn(900))
	}

	return FaultReport{
		OperatorID:      operatorID,
		MachineID:       machineID,
		AffectedPart:    part,
		ProblemCategory: category,
		Description:     fmt.Sprintf("Operator reported a fault on the %s during shift", part),
		Symptoms:        symptoms,
		ErrorCodes:      errorCodes,
		Severity:        severities[rand.Intn(len(severities))],
	}
}

var authToken string

func sendReport(apiURL string, report FaultReport) {
	data, err := json.Marshal(report)
	if err != nil {
		log.WithError(err).Error("Failed to marshal report")
		return
	}

	req, err := http.NewRequest(http.MethodPost, apiURL+"/maintenance/reports", bytes.NewBuffer(data))
	if err != nil {
		log.WithError(err).Error("Failed to build request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.WithError(err).Error("Failed to send report")
		return
	}
	defer resp.Body.Close()

	log.WithFields(log.Fields{
		"machine_id": report.MachineID,
		"severity":   report.Severity,
		"status":     resp.Status,
	}).Info("Sent fault report")
}

func simulateOperator(apiURL, operatorID string, machineIDs []string, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for range tick.C {
		machineID := machineIDs[rand.Intn(len(machineIDs))]
		sendReport(apiURL, randomReport(operatorID, machineID))
	}
}

func main() {
	// Optional JWT for protected API
	authToken = os.Getenv("SIM_AUTH_TOKEN")

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	operatorCount := 5
	if val := os.Getenv("OPERATOR_COUNT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			operatorCount = n
		}
	}

	interval := 5 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	machineIDs := []string{
		"machine-drill-001",
		"machine-drill-002",
		"machine-excavator-001",
		"machine-loader-001",
		"machine-loader-002",
	}

	log.WithFields(log.Fields{
		"operators": operatorCount,
		"api_url":   apiURL,
		"interval":  interval,
	}).Info("Starting fault report simulation")

	for i := 0; i < operatorCount; i++ {
		operatorID := fmt.Sprintf("operator-%d", i+1)
		go simulateOperator(apiURL, operatorID, machineIDs, interval)
	}

	log.Info("Fault report simulation started")
	select {} // Block forever
}
