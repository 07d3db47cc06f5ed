package jobs

import "testing"

func TestNewSchedulerTimezone(t *testing.T) {
	s := NewScheduler("Europe/Moscow", nil, nil, nil)
	if s.loc.String() != "Europe/Moscow" {
		t.Errorf("пояс %q, ожидали Europe/Moscow", s.loc.String())
	}
}

func TestNewSchedulerTimezoneFallback(t *testing.T) {
	s := NewScheduler("Нет/Такого", nil, nil, nil)
	if s.loc.String() != "MSK" {
		t.Errorf("пояс %q, ожидали откат на MSK", s.loc.String())
	}
}
