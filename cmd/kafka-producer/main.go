// Command kafka-producer feeds simulated finished games into the
// game-results topic for load testing the consumer.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/floor-guesser/internal/domain"
	"github.com/floor-guesser/internal/scoring"
)

// simulateGame plays rounds with a skill in [0,1] and returns the total.
// Skilled players land closer and pick the right floor more often.
func simulateGame(rng *rand.Rand, scorer *scoring.Scorer, rounds int, skill float64) int {
	const width, height = 1200.0, 800.0
	total := 0
	for i := 0; i < rounds; i++ {
		target := scoring.Point{X: rng.Float64() * width, Y: rng.Float64() * height}
		spread := (1 - skill) * 600
		guess := scoring.Point{
			X: target.X + (rng.Float64()*2-1)*spread,
			Y: target.Y + (rng.Float64()*2-1)*spread,
		}
		match := rng.Float64() < 0.5+skill/2

		result, err := scorer.Score(scoring.Input{
			Target:      target,
			Guess:       guess,
			FloorWidth:  width,
			FloorHeight: height,
			FloorMatch:  &match,
		})
		if err != nil {
			continue
		}
		total += result.Score
	}
	return total
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "game-results", "Kafka topic")
	users := flag.Int("users", 50, "Number of user IDs to simulate, starting at 1")
	rounds := flag.Int("rounds", 5, "Rounds per game")
	gamesPerSecond := flag.Int("rate", 20, "Games per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	if *users <= 0 || *gamesPerSecond <= 0 {
		log.Fatal("users and rate must be positive")
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("Floor guesser game-result producer")
	fmt.Printf("  Brokers:    %s\n", *brokers)
	fmt.Printf("  Topic:      %s\n", *topic)
	fmt.Printf("  Users:      %d\n", *users)
	fmt.Printf("  Games/sec:  %d\n", *gamesPerSecond)
	fmt.Println()

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	shutdown := func(reason string) {
		fmt.Printf("\n%s, shutting down...\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	scorer := scoring.NewScorer(scoring.DefaultCorrectRadius)

	// each user keeps a fixed skill so the leaderboard has a stable shape
	skills := make([]float64, *users)
	for i := range skills {
		skills[i] = rng.Float64()
	}

	ticker := time.NewTicker(time.Second / time.Duration(*gamesPerSecond))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var gameCount int64

	for {
		select {
		case <-sigChan:
			shutdown("Interrupted")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached")
				return
			}

			idx := rng.Intn(*users)
			userID := int64(idx + 1)
			submission := domain.GameResultSubmission{
				UserID:       &userID,
				TotalScore:   simulateGame(rng, scorer, *rounds, skills[idx]),
				RoundsPlayed: *rounds,
			}

			data, err := json.Marshal(submission)
			if err != nil {
				log.Printf("Failed to marshal message: %v", err)
				continue
			}

			producer.Input() <- &sarama.ProducerMessage{
				Topic: *topic,
				Key:   sarama.StringEncoder(strconv.FormatInt(userID, 10)),
				Value: sarama.ByteEncoder(data),
			}
			gameCount++

		case <-statsTicker.C:
			fmt.Printf("[%s] Games: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				gameCount,
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
