package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StringList is a JSON array column materialized as a typed slice.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// Application is the read-only scored-application source produced by the
// review stage. The pipeline never writes it; student/bank fields are
// snapshotted onto RosterItems at generation time.
type Application struct {
	ID                         int                `gorm:"primary_key" json:"id"`
	ScholarshipConfigurationId int                `gorm:"index;not null" json:"scholarship_configuration_id"`
	StudentId                  string             `gorm:"size:20;index;not null" json:"student_id"`
	StudentName                string             `gorm:"size:100;not null" json:"student_name"`
	NationalId                 string             `gorm:"size:20" json:"national_id"`
	BankCode                   string             `gorm:"size:10" json:"bank_code"`
	BankAccountNumber          string             `gorm:"size:30" json:"bank_account_number"`
	BankAccountHolder          string             `gorm:"size:100" json:"bank_account_holder"`
	OrgUnit                    string             `gorm:"size:20;index;not null" json:"org_unit"`
	DeclaredSubTypes           StringList         `gorm:"type:json" json:"declared_sub_types"`
	AcademicScore              *decimal.Decimal   `gorm:"type:decimal(7,2)" json:"academic_score"`
	ProfessorReviewScore       *decimal.Decimal   `gorm:"type:decimal(7,2)" json:"professor_review_score"`
	CollegeCriteriaScore       *decimal.Decimal   `gorm:"type:decimal(7,2)" json:"college_criteria_score"`
	SpecialCircumstancesScore  *decimal.Decimal   `gorm:"type:decimal(7,2)" json:"special_circumstances_score"`
	ScholarshipAmount          decimal.Decimal    `gorm:"type:decimal(12,2)" json:"scholarship_amount"`
	PriorAwardDate             *time.Time         `json:"prior_award_date"`
	WhitelistApproved          bool               `json:"whitelist_approved"`
	CreatedAt                  time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a Application) ComponentScores() ComponentScores {
	return ComponentScores{
		Academic:             a.AcademicScore,
		ProfessorReview:      a.ProfessorReviewScore,
		CollegeCriteria:      a.CollegeCriteriaScore,
		SpecialCircumstances: a.SpecialCircumstancesScore,
	}
}

func GetApplication(tx *gorm.DB, id int) (*Application, error) {
	var app Application
	if err := tx.First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("application %d: %w", id, err)
		}
		return nil, err
	}
	return &app, nil
}

// GetApplicationsByIds returns a lookup map for a batch of applications.
func GetApplicationsByIds(tx *gorm.DB, ids []int) (map[int]*Application, error) {
	var apps []*Application
	if len(ids) == 0 {
		return map[int]*Application{}, nil
	}
	if err := tx.Where("id IN ?", ids).Find(&apps).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]*Application, len(apps))
	for _, app := range apps {
		byId[app.ID] = app
	}
	return byId, nil
}
