package model

import "time"

// PendingLevelUp marks a level crossing the aggregator recorded but the
// level-up notification has not yet consumed.
type PendingLevelUp struct {
	Level    Level     `firestore:"level" json:"level"`
	LevelKey string    `firestore:"levelKey" json:"levelKey"`
	RaisedAt time.Time `firestore:"raisedAt" json:"raisedAt"`
}

// User is the progression document for one account.
type User struct {
	ID                   string          `firestore:"-" json:"id"`
	DisplayName          string          `firestore:"displayName" json:"displayName"`
	PhotoURL             string          `firestore:"photoUrl" json:"photoUrl"`
	TotalMeasurements    int64           `firestore:"totalMeasurements" json:"totalMeasurements"`
	Points               int64           `firestore:"points" json:"points"`
	LevelKey             string          `firestore:"level" json:"level"`
	WeeklyMeasurements   int64           `firestore:"weeklyMeasurements" json:"weeklyMeasurements"`
	PendingLevelUp       *PendingLevelUp `firestore:"pendingLevelUp" json:"pendingLevelUp,omitempty"`
	FCMToken             string          `firestore:"fcmToken" json:"-"`
	NotificationsEnabled *bool           `firestore:"notificationsEnabled" json:"notificationsEnabled,omitempty"`
	LastMeasurementAt    time.Time       `firestore:"lastMeasurementAt" json:"lastMeasurementAt"`
	UpdatedAt            time.Time       `firestore:"updatedAt,serverTimestamp" json:"updatedAt"`
}

// WantsNotifications reports whether pushes may be sent to this user.
// An unset NotificationsEnabled field defaults to true.
func (u *User) WantsNotifications() bool {
	return u.NotificationsEnabled == nil || *u.NotificationsEnabled
}

// Level returns the user's current progression level.
func (u *User) Level() Level {
	return LevelFromKey(u.LevelKey)
}
