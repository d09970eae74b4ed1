package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

const baseURL = "http://localhost:8080/api/v1"

func main() {
	// Проверяем health endpoint
	fmt.Println("Проверяем health endpoint...")
	status, body, err := get(baseURL + "/health")
	if err != nil {
		fmt.Printf("Ошибка при обращении к health endpoint: %v\n", err)
		return
	}
	fmt.Printf("Health check ответ (статус %d):\n%s\n\n", status, body)

	if len(os.Args) < 2 {
		fmt.Println("Для запуска миссии выполните: go run test_client.go <номер_миссии 1-3>")
		return
	}

	task, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Printf("Неверный номер миссии %q\n", os.Args[1])
		return
	}
	if err := startMission(task); err != nil {
		fmt.Printf("Ошибка запуска миссии: %v\n", err)
		return
	}
	watchStatus()
}

func startMission(task int) error {
	payload, err := json.Marshal(map[string]int{"task": task})
	if err != nil {
		return fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	// Ожидание сервисов может занять время
	client := &http.Client{Timeout: 5 * time.Minute}
	fmt.Printf("Отправляем команду запуска миссии %d...\n", task)
	resp, err := client.Post(baseURL+"/mission/start", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	fmt.Printf("Ответ (статус %d):\n%s\n", resp.StatusCode, string(respBody))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("миссия не запущена")
	}
	return nil
}

// watchStatus раз в секунду печатает состояние миссии, когда оно меняется
func watchStatus() {
	last := ""
	for {
		_, body, err := get(baseURL + "/mission/status")
		if err != nil {
			fmt.Printf("Ошибка получения состояния: %v\n", err)
			return
		}

		var status struct {
			State       string `json:"state"`
			Description string `json:"description"`
			IsError     bool   `json:"is_error"`
			Elapsed     string `json:"elapsed"`
		}
		if err := json.Unmarshal([]byte(body), &status); err == nil && status.State != last {
			last = status.State
			fmt.Printf("[%s] %s: %s\n", status.Elapsed, status.State, status.Description)
			if status.IsError {
				return
			}
		}
		time.Sleep(time.Second)
	}
}

func get(url string) (int, string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	return resp.StatusCode, string(body), nil
}
