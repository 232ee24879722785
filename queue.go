/*
Copyright 2025 Kolo Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package kolo

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/model"
	redis_db "github.com/kolofinance/kolo/internal/redis-db"
)

// Queue wraps the asynq client used for deferred work: notification
// delivery and withdrawal release timers.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NotificationPayload is the task body for a queued notification delivery.
type NotificationPayload struct {
	Data model.Notification
}

// WithdrawalReleasePayload is the task body for a withdrawal whose hold
// window has elapsed.
type WithdrawalReleasePayload struct {
	WithdrawalID string `json:"withdrawal_id"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueNotification enqueues a notification for delivery by the worker pool.
func (q *Queue) queueNotification(n model.Notification) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(NotificationPayload{Data: n})
	if err != nil {
		return err
	}
	task := asynq.NewTask(cfg.Queue.NotificationQueue, payload,
		asynq.TaskID(n.NotificationID),
		asynq.Queue(cfg.Queue.NotificationQueue),
	)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// queueWithdrawalRelease schedules the payout attempt for when the hold
// window elapses. The periodic withdrawal sweep is the backstop for tasks
// lost to a Redis flush.
func (q *Queue) queueWithdrawalRelease(withdrawalID string, releaseAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(WithdrawalReleasePayload{WithdrawalID: withdrawalID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(cfg.Queue.WithdrawalReleaseQueue, payload,
		asynq.TaskID(withdrawalID),
		asynq.Queue(cfg.Queue.WithdrawalReleaseQueue),
		asynq.ProcessIn(time.Until(releaseAt)),
	)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued withdrawal release: %+v", withdrawalID)
	return nil
}
