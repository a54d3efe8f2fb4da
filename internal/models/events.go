package models

import "time"

// DatasetPublishedEvent is emitted on the event bus once a dataset is published
type DatasetPublishedEvent struct {
	DatasetID      int64        `json:"dataset_id"`
	DatasetUUID    string       `json:"dataset_uuid"`
	OrganisationID int64        `json:"organisation_id"`
	Record         *DCATDataset `json:"record"`
	PublishedAt    time.Time    `json:"published_at"`
}

// SyncReceipt is what the external catalog reports back after a sync
type SyncReceipt struct {
	CatalogID string `json:"catalog_id"`
	Name      string `json:"name"`
	Modified  string `json:"modified,omitempty"`
}

// DatasetCataloguedEvent acknowledges that the external catalog holds the dataset
type DatasetCataloguedEvent struct {
	DatasetUUID string    `json:"dataset_uuid"`
	CatalogID   string    `json:"catalog_id"`
	Timestamp   time.Time `json:"timestamp"`
}
