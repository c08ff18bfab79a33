package metrics

const Namespace = "sectioncache"
