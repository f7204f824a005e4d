package ros

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"
)

func TestTopicKey(t *testing.T) {
	test.That(t, TopicKey("/input"), test.ShouldEqual, "input")
	test.That(t, TopicKey("/Camera/depth/Points"), test.ShouldEqual, "camera_depth_points")
	test.That(t, TopicKey("tf_static"), test.ShouldEqual, "tf_static")
}

func TestDecodeMessages(t *testing.T) {
	lines := `{"meta": {"secs":2,"nsecs":5}, "data":{"a":1}}
{"meta": {"secs":1,"nsecs":0}, "data":{"a":2}}
`
	msgs, err := DecodeMessages("/x", strings.NewReader(lines))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msgs, test.ShouldHaveLength, 2)
	test.That(t, msgs[0].Topic, test.ShouldEqual, "/x")
	test.That(t, msgs[0].Stamp(), test.ShouldEqual, time.Unix(2, 5))
	test.That(t, string(msgs[1].Data), test.ShouldEqual, `{"a":2}`)

	_, err = DecodeMessages("/x", strings.NewReader(lines+"{not json\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad record 2 on topic /x")
}

func TestSortByStamp(t *testing.T) {
	at := func(topic string, secs int64) Message {
		m := Message{Topic: topic}
		m.Meta.Secs = secs
		return m
	}
	msgs := []Message{at("/input", 2), at("/tf", 2), at("/input_joint", 1), at("/tf", 3)}
	sortByStamp(msgs, map[string]int{"/tf": 0, "/input_joint": 1, "/input": 2})

	var got []string
	for _, m := range msgs {
		got = append(got, m.Topic)
	}
	if diff := cmp.Diff([]string{"/input_joint", "/tf", "/input", "/tf"}, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestReadBagMissingFile(t *testing.T) {
	_, err := ReadBag(filepath.Join(t.TempDir(), "missing.bag"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unable to open input file")
}
