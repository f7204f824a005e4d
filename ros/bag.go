// Package ros reads ROS bags and converts the messages the collision detector consumes.
package ros

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag from %s", filename)
	}
	return rb, nil
}

// TopicKey is the name gobag files a topic's messages under: lower case, without the leading
// slash, with the remaining slashes turned into underscores.
func TopicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

// Message is one bag record. Data holds the message body for a typed decoder.
type Message struct {
	Topic string `json:"-"`
	Meta  struct {
		Secs  int64 `json:"secs"`
		Nsecs int64 `json:"nsecs"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// Stamp is the time the message was recorded.
func (m Message) Stamp() time.Time {
	return time.Unix(m.Meta.Secs, m.Meta.Nsecs)
}

// DecodeMessages reads newline separated bag records from r.
func DecodeMessages(topic string, r io.Reader) ([]Message, error) {
	dec := json.NewDecoder(r)
	var all []Message
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Wrapf(err, "bad record %d on topic %s", len(all), topic)
		}
		msg.Topic = topic
		all = append(all, msg)
	}
	return all, nil
}

// MessagesForTopics returns the messages recorded on the given topics, merged and ordered by
// record time. Messages recorded at the same time keep the order of topics. A topic with no
// messages is not an error.
func MessagesForTopics(rb *rosbag.RosBag, topics ...string) ([]Message, error) {
	wanted := make(map[string]int, len(topics))
	for i, topic := range topics {
		if _, ok := wanted[topic]; !ok {
			wanted[topic] = i
		}
	}
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { _, ok := wanted[t]; return ok },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	var all []Message
	for _, topic := range topics {
		buf, ok := rb.TopicsAsJSON[TopicKey(topic)]
		if !ok {
			continue
		}
		var lines bytes.Buffer
		if _, err := buf.WriteTo(&lines); err != nil {
			return nil, errors.Wrapf(err, "cannot read messages for topic %s", topic)
		}
		msgs, err := DecodeMessages(topic, &lines)
		if err != nil {
			return nil, err
		}
		all = append(all, msgs...)
	}
	sortByStamp(all, wanted)
	return all, nil
}

func sortByStamp(msgs []Message, topicOrder map[string]int) {
	sort.SliceStable(msgs, func(i, j int) bool {
		si, sj := msgs[i].Stamp(), msgs[j].Stamp()
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return topicOrder[msgs[i].Topic] < topicOrder[msgs[j].Topic]
	})
}
