package kafka

import "testing"

func TestTopicName(t *testing.T) {
	cases := map[string]string{
		"capstone_energia/datosPotencia": "capstone_energia.datosPotencia",
		"/a/b/c/":                        "a.b.c",
		"plain":                          "plain",
	}
	for in, want := range cases {
		if got := TopicName(in); got != want {
			t.Fatalf("TopicName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{GroupID: "g"}, nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := New(Config{Brokers: []string{"localhost:9092"}}, nil); err == nil {
		t.Fatalf("expected error without group id")
	}
	bus, err := New(Config{Brokers: []string{"localhost:9092"}, GroupID: "g"}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
