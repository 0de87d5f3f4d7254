package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/JackieWYB/majiang-sub001/common/config"
	"github.com/JackieWYB/majiang-sub001/common/log"
)

// Server etcd 中的节点描述，value 为 json
type Server struct {
	Name    string  `json:"name"`
	NodeID  string  `json:"nodeID"`
	Addr    string  `json:"addr"`
	Version string  `json:"version"`
	Weight  int     `json:"weight"`
	Ttl     int     `json:"ttl"`
	Load    float64 `json:"load"`
}

func (s Server) buildKey() string {
	return fmt.Sprintf("/server/%s/%s/%s", s.Name, s.Version, s.NodeID)
}

// Registry 把本节点注册到 etcd，租约续期，负载上报
type Registry struct {
	etcdCli     *clientv3.Client
	leaseID     clientv3.LeaseID
	DialTimeout int
	keepAliveCh <-chan *clientv3.LeaseKeepAliveResponse
	info        Server
	closeCh     chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		DialTimeout: 3,
	}
}

func (r *Registry) Register(conf config.EtcdConf, nodeID string) error {
	if nodeID == "" {
		return fmt.Errorf("nodeID 不能为空")
	}

	r.info = Server{
		Name:    conf.Register.Name,
		Addr:    conf.Register.Addr,
		Weight:  conf.Register.Weight,
		Version: conf.Register.Version,
		Ttl:     conf.Register.Ttl,
		NodeID:  nodeID,
	}

	var err error
	r.etcdCli, err = clientv3.New(clientv3.Config{
		Endpoints:   conf.Addrs,
		DialTimeout: time.Duration(r.DialTimeout) * time.Second,
	})
	if err != nil {
		return err
	}

	if err = r.doRegister(); err != nil {
		return err
	}

	r.closeCh = make(chan struct{})
	go r.watch()
	return nil
}

func (r *Registry) doRegister() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()

	if err := r.grantLease(ctx, r.info.Ttl); err != nil {
		return err
	}

	data, _ := json.Marshal(r.info)
	if err := r.bindLease(ctx, r.info.buildKey(), string(data)); err != nil {
		return err
	}
	log.Info("etcd 注册信息: %s", r.info.buildKey())

	// keepAlive 需要长期运行，不能用带超时的 context
	var err error
	r.keepAliveCh, err = r.etcdCli.KeepAlive(context.Background(), r.leaseID)
	if err != nil {
		log.Error("租约续期失败: %v", err)
		return err
	}
	return nil
}

func (r *Registry) grantLease(ctx context.Context, ttl int) error {
	lease, err := r.etcdCli.Grant(ctx, int64(ttl))
	if err != nil {
		return err
	}
	r.leaseID = lease.ID
	return nil
}

func (r *Registry) bindLease(ctx context.Context, key, value string) error {
	_, err := r.etcdCli.Put(ctx, key, value, clientv3.WithLease(r.leaseID))
	if err != nil {
		log.Error("租约绑定失败: %v", err)
		return err
	}
	return nil
}

func (r *Registry) watch() {
	ticker := time.NewTicker(time.Duration(r.info.Ttl/2) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case res, ok := <-r.keepAliveCh:
			if !ok || res == nil {
				log.Warn("keepAlive 连接断开，重新注册服务")
				r.keepAliveCh = nil
				if err := r.doRegister(); err != nil {
					log.Error("重新注册失败: %v", err)
					time.Sleep(time.Duration(r.info.Ttl) * time.Second)
				}
			}
		case <-ticker.C:
			if r.keepAliveCh == nil {
				if err := r.doRegister(); err != nil {
					log.Error("定时器重新注册失败: %v", err)
				}
			}
		case <-r.closeCh:
			if err := r.unregister(); err != nil {
				log.Error("注销服务失败: %v", err)
			}
			if _, err := r.etcdCli.Revoke(context.Background(), r.leaseID); err != nil {
				log.Error("撤销租约失败: %v", err)
			}
			log.Info("关闭租约续期")
			return
		}
	}
}

func (r *Registry) unregister() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()

	_, err := r.etcdCli.Delete(ctx, r.info.buildKey())
	return err
}

// UpdateLoad 更新节点负载评分（沿用现有租约）
func (r *Registry) UpdateLoad(load float64) error {
	r.info.Load = load
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()

	data, err := json.Marshal(r.info)
	if err != nil {
		return err
	}

	_, err = r.etcdCli.Put(ctx, r.info.buildKey(), string(data), clientv3.WithLease(r.leaseID))
	if err != nil {
		log.Error("更新负载信息失败: %v", err)
		return err
	}
	return nil
}

func (r *Registry) Close() {
	close(r.closeCh)
}
