package condition

import "time"

// DemoRecords returns the demo dataset loaded by the seed command and by
// the in-memory store in development.
func DemoRecords() []*Condition {
	onset := time.Date(2008, time.July, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2008, time.July, 1, 9, 0, 0, 0, time.UTC)
	malariaOnset := time.Date(2015, time.March, 12, 0, 0, 0, 0, time.UTC)
	return []*Condition{
		{
			ID:             "86sgf-1f7d-4394-a316-0a458edf28c4",
			ClinicalStatus: StatusUnknown,
			Onset:          &onset,
			SubjectID:      "da7f524f-27ce-4bb2-86d6-6d1d05312bd5",
			CreatedAt:      created,
			UpdatedAt:      created,
		},
		{
			ID:             "2cc6880e-2c46-11e4-9138-a6c5e4d20fb7",
			ClinicalStatus: StatusActive,
			Onset:          &malariaOnset,
			SubjectID:      "da7f524f-27ce-4bb2-86d6-6d1d05312bd5",
			Codes: []Coding{{
				System:  "https://cielterminology.org",
				Code:    "116128AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
				Display: "Malaria",
			}},
			CreatedAt: malariaOnset,
			UpdatedAt: malariaOnset,
		},
		{
			ID:             "a9b2c7e4-5d1f-4c2a-9e8b-3f6d2a1c0b9e",
			ClinicalStatus: StatusResolved,
			SubjectID:      "5946f880-b197-400b-9caa-a3c661d23041",
			Codes: []Coding{{
				System:  "http://snomed.info/sct",
				Code:    "38341003",
				Display: "Hypertensive disorder",
			}},
			CreatedAt: time.Date(2019, time.November, 4, 14, 30, 0, 0, time.UTC),
			UpdatedAt: time.Date(2019, time.November, 4, 14, 30, 0, 0, time.UTC),
		},
	}
}
