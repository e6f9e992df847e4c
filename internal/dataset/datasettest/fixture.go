// Package datasettest provides a small airline world for tests.
package datasettest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/timeshift/internal/dataset"
)

// BaseYear and CurrentTime describe the fixture world.
const (
	BaseYear    = 2024
	CurrentTime = "2024-05-15T15:00:00"
)

// DBJSON is a trimmed db.json: one user, two flights, one reservation.
const DBJSON = `{
    "flights": {
        "AA100": {
            "flight_number": "AA100",
            "origin": "JFK",
            "destination": "LAX",
            "dates": {
                "2024-05-15": {
                    "status": "available",
                    "available_seats": {"economy": 12, "business": 3},
                    "prices": {"economy": 120.5, "business": 640}
                },
                "2024-05-16": {
                    "status": "available",
                    "prices": {"economy": 99, "business": 610}
                }
            }
        },
        "HAT001": {
            "flight_number": "HAT001",
            "origin": "PHL",
            "destination": "LGA",
            "dates": {
                "2024-05-10": {
                    "status": "landed",
                    "actual_departure_time_est": "2024-05-10T06:04:00",
                    "actual_arrival_time_est": "2024-05-10T07:30:00"
                },
                "2024-05-31": {
                    "status": "delayed",
                    "estimated_departure_time_est": "2024-05-31T23:30:00",
                    "estimated_arrival_time_est": "2024-06-01T01:10:00"
                }
            }
        }
    },
    "users": {
        "mia_li_3668": {
            "user_id": "mia_li_3668",
            "name": {"first_name": "Mia", "last_name": "Li"},
            "dob": "1990-04-05",
            "membership": "gold",
            "passengers": [
                {"first_name": "Amelia", "last_name": "Ahmed", "dob": "1957-03-21"}
            ]
        }
    },
    "reservations": {
        "4WQ150": {
            "reservation_id": "4WQ150",
            "user_id": "mia_li_3668",
            "created_at": "2024-05-01T10:15:00",
            "flights": [
                {"flight_number": "AA100", "date": "2024-05-15", "price": 120}
            ],
            "passengers": [
                {"first_name": "Mia", "last_name": "Li", "dob": "1990-04-05"}
            ]
        }
    }
}`

// TasksJSON has one booking task that references AA100 on 2024-05-15.
const TasksJSON = `[
    {
        "id": "0",
        "description": {
            "purpose": "Book AA100 for May 15",
            "notes": null
        },
        "user_scenario": {
            "persona": null,
            "instructions": {
                "domain": "airline",
                "task_instructions": "You want to fly on May 15 2024 and return Jun 1.",
                "reason_for_call": "Booking AA100 on May 15",
                "known_info": "Your user id is mia_li_3668. Reservation made on 2024-05-01T10:15:00.",
                "unknown_info": ""
            }
        },
        "evaluation_criteria": {
            "actions": [
                {
                    "action_id": "0_0",
                    "name": "book_reservation",
                    "arguments": {
                        "user_id": "mia_li_3668",
                        "origin": "JFK",
                        "flights": [
                            {"flight_number": "AA100", "date": "2024-05-15"}
                        ],
                        "total_baggages": 0,
                        "insurance": "no"
                    }
                }
            ],
            "nl_assertions": ["Agent books AA100 on 2024-05-15."],
            "communicate_info": [{"value": "May 15"}]
        }
    }
]`

// Policy carries exactly one current-time sentinel.
const Policy = `# Airline Agent Policy

The current time is 2024-05-15 15:00:00 EST.

As an airline agent, you can help users book, modify, or cancel flight reservations.
`

// SplitJSON is the split index, kept byte for byte by generation.
const SplitJSON = `{"base": ["0"], "train": [], "test": ["0"]}
`

// Airline returns the fixture decoded as a Dataset.
func Airline(t testing.TB) *dataset.Dataset {
	t.Helper()

	db, err := dataset.DecodeJSON(strings.NewReader(DBJSON))
	if err != nil {
		t.Fatalf("decoding fixture db: %v", err)
	}
	tasks, err := dataset.DecodeJSON(strings.NewReader(TasksJSON))
	if err != nil {
		t.Fatalf("decoding fixture tasks: %v", err)
	}
	return &dataset.Dataset{
		DB:         db.(map[string]any),
		Tasks:      tasks.([]any),
		Policy:     Policy,
		SplitTasks: []byte(SplitJSON),
	}
}

// WriteAirline writes the raw fixture files into dir and returns dir.
func WriteAirline(t testing.TB, dir string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating %s: %v", dir, err)
	}
	files := map[string]string{
		dataset.DBFile:         DBJSON,
		dataset.TasksFile:      TasksJSON,
		dataset.PolicyFile:     Policy,
		dataset.SplitTasksFile: SplitJSON,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}
