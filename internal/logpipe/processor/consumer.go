package processor

import (
	"errors"
	"strings"

	"github.com/IBM/sarama"
)

// Consumer owns the Kafka client and the consumer group built on it. The client is
// kept so Setup can look offsets up by time.
type Consumer struct {
	client sarama.Client
	group  sarama.ConsumerGroup
	topic  string
}

func NewConsumer(brokersCSV, groupID, topic string) (*Consumer, error) {
	brokers := splitCSV(brokersCSV)

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, err
	}
	cg, err := sarama.NewConsumerGroupFromClient(groupID, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Consumer{client: client, group: cg, topic: topic}, nil
}

// OffsetAt returns the first offset of partition whose timestamp is >= timeMs.
func (c *Consumer) OffsetAt(topic string, partition int32, timeMs int64) (int64, error) {
	return c.client.GetOffset(topic, partition, timeMs)
}

// the group does not close a client it was built from
func (c *Consumer) Close() error {
	return errors.Join(c.group.Close(), c.client.Close())
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, x := range parts {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
