package store

import (
	"encoding/json"

	"github.com/nhle/cyclic-tasks/internal/model"
)

const defaultNotificationLimit = 50

// encodeTasks serializes a collection as a JSON array. A nil slice is
// stored as [] so readers never see null.
func encodeTasks(tasks []model.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []model.Task{}
	}
	return json.Marshal(tasks)
}

func decodeTasks(data []byte) ([]model.Task, error) {
	tasks := []model.Task{}
	if len(data) == 0 {
		return tasks, nil
	}
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}
