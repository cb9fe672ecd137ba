package dto

// MonthQuery selects one calendar month.
type MonthQuery struct {
	Year  int `form:"year" uri:"year" json:"year" validate:"required,min=1900,max=2200"`
	Month int `form:"month" uri:"month" json:"month" validate:"required,min=1,max=12"`
}

// DayQuery selects one calendar day.
type DayQuery struct {
	Date string `uri:"date" json:"date" validate:"required,datetime=2006-01-02"`
}

// ExportQuery selects a yearly export, or a monthly one when Month is set.
type ExportQuery struct {
	Year  int `form:"year" validate:"omitempty,min=1900,max=2200"`
	Month int `form:"month" validate:"omitempty,min=1,max=12"`
}

// ImportYearRequest carries a yearly CSV upload and its confirmation flags.
type ImportYearRequest struct {
	CSV      string `validate:"required"`
	Confirm  bool   `form:"confirm"`
	Override bool   `form:"override"`
}

// ImportMonthRequest carries a monthly CSV upload for one month.
type ImportMonthRequest struct {
	MonthQuery
	CSV     string `validate:"required"`
	Confirm bool   `form:"confirm"`
}

// ClearRequest confirms wiping the stored schedule.
type ClearRequest struct {
	Confirm bool `form:"confirm"`
}
